package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Foo.com/", "foo.com"},
		{"foo.com", "foo.com"},
		{"http://www.MoltBook.com/path?q=1", "moltbook.com"},
		{"moltbook.com.", "moltbook.com"},
		{"https://clawhub.ai:443/", "clawhub.ai"},
		{"//4claw.org/b/", "4claw.org"},
	}

	for _, tt := range tests {
		got, err := CanonicalDomain(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCanonicalDomain_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "mailto:hello@molt.church", "localhost", "https:///nohost"} {
		_, err := CanonicalDomain(in)
		assert.Error(t, err, in)
	}
}

func TestSplitSuffix(t *testing.T) {
	label, suffix := SplitSuffix("moltbook.co.uk")
	assert.Equal(t, "moltbook", label)
	assert.Equal(t, "co.uk", suffix)

	label, suffix = SplitSuffix("clawcity.app")
	assert.Equal(t, "clawcity", label)
	assert.Equal(t, "app", suffix)
}

func TestRegistrableDomain(t *testing.T) {
	assert.Equal(t, "moltbook.com", RegistrableDomain("api.moltbook.com"))
	assert.Equal(t, "moltbook.co.uk", RegistrableDomain("www2.moltbook.co.uk"))
	assert.Equal(t, "clawcity.vercel.app", RegistrableDomain("clawcity.vercel.app"))
	assert.Equal(t, "moltbook.com", RegistrableDomain("moltbook.com"))
}

func TestTrust_Ordering(t *testing.T) {
	assert.True(t, TrustVerified.AtLeast(TrustHigh))
	assert.True(t, TrustHigh.AtLeast(TrustMedium))
	assert.True(t, TrustMedium.AtLeast(TrustLow))
	assert.True(t, TrustLow.AtLeast(TrustUntrusted))
	assert.False(t, TrustLow.AtLeast(TrustMedium))
	assert.Equal(t, TrustLow.Rank(), Trust("").Rank())
	assert.Equal(t, 0, Trust("bogus").Rank())
}

func TestParseTrust(t *testing.T) {
	trust, err := ParseTrust(" High ")
	require.NoError(t, err)
	assert.Equal(t, TrustHigh, trust)

	trust, err = ParseTrust("")
	require.NoError(t, err)
	assert.Equal(t, TrustLow, trust)

	_, err = ParseTrust("excellent")
	assert.Error(t, err)
}

func TestPortal_Public(t *testing.T) {
	assert.False(t, Portal{}.Public())
	assert.False(t, Portal{Trust: TrustLow}.Public())
	assert.True(t, Portal{Trust: TrustMedium}.Public())
	assert.True(t, Portal{Trust: TrustVerified}.Public())
}

func TestPortal_Domain(t *testing.T) {
	assert.Equal(t, "moltbook.com", Portal{URL: "https://www.moltbook.com/"}.Domain())
	assert.Equal(t, "", Portal{URL: "not a url at all"}.Domain())
	assert.Equal(t, "moltbook-com", PortalID("moltbook.com"))
}
