package authresolver_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/storegate/internal/authresolver"
	"github.com/sabouaram/storegate/internal/gwtypes"
)

type fakeStore struct {
	admin       string
	keys        map[string]gwtypes.Principal
	deleted     []string
	touched     []string
}

func newFakeStore(admin string) *fakeStore {
	return &fakeStore{admin: admin, keys: make(map[string]gwtypes.Principal)}
}

func (f *fakeStore) AdminToken() string { return f.admin }

func (f *fakeStore) LookupApiKey(ctx context.Context, key string) (gwtypes.Principal, bool, error) {
	p, ok := f.keys[key]
	return p, ok, nil
}

func (f *fakeStore) DeleteExpiredApiKey(ctx context.Context, principalID string) error {
	f.deleted = append(f.deleted, principalID)
	return nil
}

func (f *fakeStore) TouchApiKey(ctx context.Context, principalID string, at time.Time) error {
	f.touched = append(f.touched, principalID)
	return nil
}

var _ = Describe("Resolver.Resolve", func() {
	var store *fakeStore

	BeforeEach(func() {
		store = newFakeStore("admin-secret")
		store.keys["key-acme"] = gwtypes.Principal{
			ID:        "p-acme",
			Type:      gwtypes.AuthApiKey,
			BasicPath: "/tenants/acme/",
		}
	})

	It("returns an unauthenticated result for an empty header", func() {
		r := authresolver.New(store)
		res, err := r.Resolve(context.Background(), "")
		Expect(err).ToNot(HaveOccurred())
		Expect(res.AuthType).To(Equal(gwtypes.AuthNone))
	})

	It("rejects a malformed header with no scheme/value split", func() {
		r := authresolver.New(store)
		_, err := r.Resolve(context.Background(), "garbage")
		Expect(err).To(HaveOccurred())
	})

	It("authenticates a Bearer admin token as admin", func() {
		r := authresolver.New(store)
		res, err := r.Resolve(context.Background(), "Bearer admin-secret")
		Expect(err).ToNot(HaveOccurred())
		Expect(res.IsAdmin()).To(BeTrue())
		Expect(res.AllowedPrefix).To(Equal(gwtypes.VirtualPath("/")))
	})

	It("authenticates a Bearer value matching a known api key", func() {
		r := authresolver.New(store)
		res, err := r.Resolve(context.Background(), "Bearer key-acme")
		Expect(err).ToNot(HaveOccurred())
		Expect(res.AuthType).To(Equal(gwtypes.AuthApiKey))
		Expect(res.AllowedPrefix).To(Equal(gwtypes.VirtualPath("/tenants/acme/")))
		Expect(store.touched).To(ContainElement("p-acme"))
	})

	It("rejects an unknown ApiKey value", func() {
		r := authresolver.New(store)
		_, err := r.Resolve(context.Background(), "ApiKey does-not-exist")
		Expect(err).To(HaveOccurred())
	})

	It("deletes and rejects an expired api key", func() {
		past := time.Now().Add(-time.Hour)
		store.keys["expired-key"] = gwtypes.Principal{ID: "p-old", ExpiresAt: &past}
		r := authresolver.New(store)
		_, err := r.Resolve(context.Background(), "ApiKey expired-key")
		Expect(err).To(HaveOccurred())
		Expect(store.deleted).To(ContainElement("p-old"))
	})

	It("authenticates Basic admin:admin when it matches the admin token", func() {
		r := authresolver.New(store)
		enc := base64.StdEncoding.EncodeToString([]byte("admin-secret:admin-secret"))
		res, err := r.Resolve(context.Background(), fmt.Sprintf("Basic %s", enc))
		Expect(err).ToNot(HaveOccurred())
		Expect(res.IsAdmin()).To(BeTrue())
	})

	It("treats matching non-admin Basic user/pass as an api key lookup", func() {
		r := authresolver.New(store)
		enc := base64.StdEncoding.EncodeToString([]byte("key-acme:key-acme"))
		res, err := r.Resolve(context.Background(), fmt.Sprintf("Basic %s", enc))
		Expect(err).ToNot(HaveOccurred())
		Expect(res.AuthType).To(Equal(gwtypes.AuthApiKey))
	})

	It("rejects Basic credentials where user and pass differ", func() {
		r := authresolver.New(store)
		enc := base64.StdEncoding.EncodeToString([]byte("user:pass"))
		_, err := r.Resolve(context.Background(), fmt.Sprintf("Basic %s", enc))
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unsupported auth scheme", func() {
		r := authresolver.New(store)
		_, err := r.Resolve(context.Background(), "Digest somevalue")
		Expect(err).To(HaveOccurred())
	})
})
