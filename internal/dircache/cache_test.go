package dircache_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/storegate/internal/dircache"
	"github.com/sabouaram/storegate/internal/gwtypes"
)

var _ = Describe("DirectoryCache", func() {
	var dc *dircache.DirectoryCache

	BeforeEach(func() {
		dc = dircache.New(context.Background())
	})

	AfterEach(func() {
		Expect(dc.Close()).ToNot(HaveOccurred())
	})

	It("misses on a key that was never stored", func() {
		_, ok := dc.Get(dircache.Key{MountID: "m1", SubPath: "a/"})
		Expect(ok).To(BeFalse())
	})

	It("round-trips a stored listing", func() {
		key := dircache.Key{MountID: "m1", SubPath: "a/", PrincipalClass: "admin"}
		listing := gwtypes.DirectoryListing{Path: "/a/", RefreshedAt: time.Now()}
		dc.Put(key, listing, time.Minute)

		got, ok := dc.Get(key)
		Expect(ok).To(BeTrue())
		Expect(got.Path).To(Equal(gwtypes.VirtualPath("/a/")))
	})

	It("never stores an entry when ttl is zero or negative", func() {
		key := dircache.Key{MountID: "m1", SubPath: "a/"}
		dc.Put(key, gwtypes.DirectoryListing{}, 0)
		_, ok := dc.Get(key)
		Expect(ok).To(BeFalse())
	})

	It("partitions identical subpaths by principal class", func() {
		adminKey := dircache.Key{MountID: "m1", SubPath: "a/", PrincipalClass: "admin"}
		restrictedKey := dircache.Key{MountID: "m1", SubPath: "a/", PrincipalClass: "apikey:/a/"}

		dc.Put(adminKey, gwtypes.DirectoryListing{Path: "/a/admin-view/"}, time.Minute)

		_, ok := dc.Get(restrictedKey)
		Expect(ok).To(BeFalse())

		got, ok := dc.Get(adminKey)
		Expect(ok).To(BeTrue())
		Expect(got.Path).To(Equal(gwtypes.VirtualPath("/a/admin-view/")))
	})

	It("removes exactly one key on InvalidateExact", func() {
		k1 := dircache.Key{MountID: "m1", SubPath: "a/"}
		k2 := dircache.Key{MountID: "m1", SubPath: "b/"}
		dc.Put(k1, gwtypes.DirectoryListing{}, time.Minute)
		dc.Put(k2, gwtypes.DirectoryListing{}, time.Minute)

		dc.InvalidateExact(k1)

		_, ok1 := dc.Get(k1)
		_, ok2 := dc.Get(k2)
		Expect(ok1).To(BeFalse())
		Expect(ok2).To(BeTrue())
	})

	It("invalidates a subpath and every ancestor directory on InvalidateAncestors", func() {
		root := dircache.Key{MountID: "m1", SubPath: ""}
		a := dircache.Key{MountID: "m1", SubPath: "a/"}
		ab := dircache.Key{MountID: "m1", SubPath: "a/b/"}
		unrelated := dircache.Key{MountID: "m1", SubPath: "z/"}

		for _, k := range []dircache.Key{root, a, ab, unrelated} {
			dc.Put(k, gwtypes.DirectoryListing{}, time.Minute)
		}

		dc.InvalidateAncestors("m1", "a/b/")

		_, okRoot := dc.Get(root)
		_, okA := dc.Get(a)
		_, okAB := dc.Get(ab)
		_, okUnrelated := dc.Get(unrelated)

		Expect(okRoot).To(BeFalse())
		Expect(okA).To(BeFalse())
		Expect(okAB).To(BeFalse())
		Expect(okUnrelated).To(BeTrue())
	})

	It("removes every entry for a mount on InvalidateByMount", func() {
		k1 := dircache.Key{MountID: "m1", SubPath: "a/"}
		k2 := dircache.Key{MountID: "m2", SubPath: "a/"}
		dc.Put(k1, gwtypes.DirectoryListing{}, time.Minute)
		dc.Put(k2, gwtypes.DirectoryListing{}, time.Minute)

		dc.InvalidateByMount("m1")

		_, ok1 := dc.Get(k1)
		_, ok2 := dc.Get(k2)
		Expect(ok1).To(BeFalse())
		Expect(ok2).To(BeTrue())
	})

	It("removes every entry whose mount maps to the given storage config", func() {
		k1 := dircache.Key{MountID: "m1", SubPath: "a/"}
		k2 := dircache.Key{MountID: "m2", SubPath: "a/"}
		dc.Put(k1, gwtypes.DirectoryListing{}, time.Minute)
		dc.Put(k2, gwtypes.DirectoryListing{}, time.Minute)

		dc.InvalidateByStorageConfig(map[string]string{"m1": "sc-a", "m2": "sc-b"}, "sc-a")

		_, ok1 := dc.Get(k1)
		_, ok2 := dc.Get(k2)
		Expect(ok1).To(BeFalse())
		Expect(ok2).To(BeTrue())
	})
})
