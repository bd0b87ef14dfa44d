package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-filter/internal/filter/domain"
)

func TestParseRule_DomainAnchor(t *testing.T) {
	r, ok := ParseRule("||ads.example.com^")
	require.True(t, ok)
	assert.Equal(t, []string{"ads.example.com"}, r.HostSuffixes)
	assert.True(t, r.IsBlock)
	assert.Nil(t, r.Pattern)
	assert.Equal(t, domain.RuleClassHostAnchor, r.Class())
}

func TestParseRule_ExceptionAnchor(t *testing.T) {
	r, ok := ParseRule("@@||good.example.com^")
	require.True(t, ok)
	assert.False(t, r.IsBlock)
	assert.Equal(t, []string{"good.example.com"}, r.HostSuffixes)
	assert.Nil(t, r.Pattern)
}

func TestParseRule_Rejected(t *testing.T) {
	cases := []struct {
		line   string
		reason error
	}{
		{"", ErrEmpty},
		{"   \t", ErrEmpty},
		{"! a comment", ErrComment},
		{"[Adblock Plus 2.0]", ErrComment},
		{"##.banner", ErrCosmetic},
		{"example.com##.ad-box", ErrCosmetic},
		{"example.com#@#.ad-box", ErrCosmetic},
		{"example.com#?#div:has(> .ad)", ErrCosmetic},
		{"ad", ErrTooShort},
		{"@@ad", ErrTooShort},
		{"*", ErrMatchAll},
		{"||^", ErrMatchAll},
		{"$script,third-party", ErrMatchAll},
		{"/banner[0-9]+/", ErrUnsupported},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			r, err := Parse(tc.line)
			assert.Nil(t, r)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.reason)
			assert.Equal(t, tc.reason, Reason(err))

			_, ok := ParseRule(tc.line)
			assert.False(t, ok)
		})
	}
}

func TestParseRule_Substring(t *testing.T) {
	r, ok := ParseRule("ads")
	require.True(t, ok)
	require.NotNil(t, r.Pattern)
	assert.Empty(t, r.HostSuffixes)
	assert.True(t, r.Pattern.MatchString("https://example.com/ADS/banner.png"))
	assert.False(t, r.Pattern.MatchString("https://example.com/ad/banner.png"))

	r, ok = ParseRule("/banner.gif?")
	require.True(t, ok)
	assert.True(t, r.Pattern.MatchString("https://cdn.example.com/banner.gif?x=1"))
	assert.False(t, r.Pattern.MatchString("https://cdn.example.com/bannerXgif"))
}

func TestParseRule_Options(t *testing.T) {
	r, ok := ParseRule("||tracker.net^$script,IMAGE,third-party,domain=News.com|~sport.news.com")
	require.True(t, ok)
	assert.Equal(t, []string{"tracker.net"}, r.HostSuffixes)
	assert.True(t, r.ResourceTypes.Has(domain.ResourceScript))
	assert.True(t, r.ResourceTypes.Has(domain.ResourceImage))
	assert.False(t, r.ResourceTypes.Has(domain.ResourceFont))
	assert.Equal(t, domain.PartyThird, r.ThirdParty)
	assert.Equal(t, []string{"news.com"}, r.IncludeDomains)
	assert.Equal(t, []string{"sport.news.com"}, r.ExcludeDomains)
}

func TestParseRule_PartyOptions(t *testing.T) {
	cases := []struct {
		opt  string
		want domain.PartyConstraint
	}{
		{"third-party", domain.PartyThird},
		{"~first-party", domain.PartyThird},
		{"~third-party", domain.PartyFirst},
		{"first-party", domain.PartyFirst},
		{"3p", domain.PartyThird},
		{"1p", domain.PartyFirst},
		{"script", domain.PartyAny},
	}
	for _, tc := range cases {
		r, ok := ParseRule("||ads.example.com^$" + tc.opt)
		require.True(t, ok, tc.opt)
		assert.Equal(t, tc.want, r.ThirdParty, tc.opt)
	}
}

func TestParseRule_UnsupportedOptionsReject(t *testing.T) {
	lines := []string{
		"||site.example^$popup",
		"||site.example^$csp=script-src 'self'",
		"@@||ads.example.com^$generichide",
		"@@||ads.example.com^$elemhide",
		"||cdn.example.com^$script,important",
		"/banner/*$image,match-case",
		"||cdn.example.com^$~script,popup,xmlhttprequest",
		"||cdn.example.com^$script=1",
		"||cdn.example.com^$script,~script",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			r, err := Parse(line)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, ErrUnsupported)
			assert.Equal(t, ErrUnsupported, Reason(err))
		})
	}
}

func TestParseRule_NegatedResourceTypes(t *testing.T) {
	r, ok := ParseRule("||cdn.example.com^$~script")
	require.True(t, ok)
	assert.False(t, r.ResourceTypes.Allows(domain.ResourceScript))
	assert.True(t, r.ResourceTypes.Allows(domain.ResourceImage))
	assert.True(t, r.ResourceTypes.Allows(domain.ResourceOther))

	r, ok = ParseRule("||cdn.example.com^$script,image,~image")
	require.True(t, ok)
	assert.Equal(t, domain.ResourceTypeSet(0).Add(domain.ResourceScript), r.ResourceTypes)

	req, err := domain.NewRequestContext("https://cdn.example.com/app.js", "", domain.ResourceScript)
	require.NoError(t, err)
	neg, ok := ParseRule("||cdn.example.com^$~script")
	require.True(t, ok)
	assert.False(t, neg.Matches(req, false), "negated type must not block that type")
}

func TestParseRule_WildcardRegex(t *testing.T) {
	cases := []struct {
		line    string
		match   []string
		noMatch []string
	}{
		{
			line:    "||example.com/ads/*",
			match:   []string{"https://example.com/ads/x.js", "http://sub.example.com/ads/"},
			noMatch: []string{"https://notexample.com/ads/x.js", "https://example.com/other/ads/"},
		},
		{
			line:    "/adserver/*/banner^",
			match:   []string{"https://a.org/adserver/v1/banner?id=1", "https://a.org/adserver/x/banner"},
			noMatch: []string{"https://a.org/adserver/v1/bannerx"},
		},
		{
			line:    "|https://ads.",
			match:   []string{"https://ads.example.com/"},
			noMatch: []string{"http://x.org/?u=https://ads.example.com/"},
		},
		{
			line:    ".swf|",
			match:   []string{"https://x.org/movie.swf"},
			noMatch: []string{"https://x.org/movie.swf?autoplay=1"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			r, ok := ParseRule(tc.line)
			require.True(t, ok)
			for _, u := range tc.match {
				require.NotNil(t, r.Pattern)
				assert.True(t, r.Pattern.MatchString(u), "expected %q to match %q", tc.line, u)
			}
			for _, u := range tc.noMatch {
				require.NotNil(t, r.Pattern)
				assert.False(t, r.Pattern.MatchString(u), "expected %q not to match %q", tc.line, u)
			}
		})
	}
}

func TestParseRule_AnchorWithPathIsRegex(t *testing.T) {
	r, ok := ParseRule("||doubleclick.net/pagead^")
	require.True(t, ok)
	assert.Empty(t, r.HostSuffixes)
	require.NotNil(t, r.Pattern)
	assert.Equal(t, domain.RuleClassPattern, r.Class())
}

func TestParseRule_NormalizesHost(t *testing.T) {
	r, ok := ParseRule("  ||Ads.Example.COM^  ")
	require.True(t, ok)
	assert.Equal(t, []string{"ads.example.com"}, r.HostSuffixes)
	assert.Equal(t, "||Ads.Example.COM^", r.Text)

	r, ok = ParseRule("||bücher.example^")
	require.True(t, ok)
	assert.Equal(t, []string{"xn--bcher-kva.example"}, r.HostSuffixes)
}

func TestParseRule_BOM(t *testing.T) {
	r, ok := ParseRule("\ufeff||ads.example.com^")
	require.True(t, ok)
	assert.Equal(t, []string{"ads.example.com"}, r.HostSuffixes)
}

func TestSplitOptions(t *testing.T) {
	cases := []struct {
		in, pattern, options string
	}{
		{"||a.com^$script", "||a.com^", "script"},
		{"a$b$image", "a$b", "image"},
		{"noopts", "noopts", ""},
		{`q\$x`, `q\$x`, ""},
		{"$third-party", "", "third-party"},
	}
	for _, tc := range cases {
		p, o := splitOptions(tc.in)
		assert.Equal(t, tc.pattern, p, tc.in)
		assert.Equal(t, tc.options, o, tc.in)
	}
}
