package gwtypes_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/storegate/internal/gwtypes"
)

var _ = Describe("CapabilitySet.Has", func() {
	It("grants every capability to an admin set", func() {
		caps := gwtypes.CapabilitySet{gwtypes.CapAdmin: true}
		Expect(caps.Has(gwtypes.CapFile)).To(BeTrue())
		Expect(caps.Has(gwtypes.CapMount)).To(BeTrue())
	})

	It("checks only the requested flag for a non-admin set", func() {
		caps := gwtypes.CapabilitySet{gwtypes.CapText: true}
		Expect(caps.Has(gwtypes.CapText)).To(BeTrue())
		Expect(caps.Has(gwtypes.CapFile)).To(BeFalse())
	})
})

var _ = Describe("Principal.Expired", func() {
	It("reports false when there is no expiry", func() {
		p := gwtypes.Principal{}
		Expect(p.Expired(time.Now())).To(BeFalse())
	})

	It("reports true once the expiry has passed", func() {
		past := time.Now().Add(-time.Hour)
		p := gwtypes.Principal{ExpiresAt: &past}
		Expect(p.Expired(time.Now())).To(BeTrue())
	})
})

var _ = Describe("AuthResult", func() {
	It("treats an admin result as allowed everywhere", func() {
		a := gwtypes.AuthResult{AuthType: gwtypes.AuthAdmin}
		Expect(a.IsAdmin()).To(BeTrue())
		Expect(a.Allows("/anything/at/all")).To(BeTrue())
		Expect(a.PrincipalClass()).To(Equal("admin"))
	})

	It("restricts an apiKey result to its allowed prefix", func() {
		a := gwtypes.AuthResult{AuthType: gwtypes.AuthApiKey, AllowedPrefix: "/tenants/acme/"}
		Expect(a.Allows("/tenants/acme/docs/file.txt")).To(BeTrue())
		Expect(a.Allows("/tenants/other/file.txt")).To(BeFalse())
		Expect(a.PrincipalClass()).To(Equal("apikey:/tenants/acme/"))
	})
})
