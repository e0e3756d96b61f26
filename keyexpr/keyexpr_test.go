package keyexpr_test

import (
	"testing"

	"code.hybscloud.com/zlink/keyexpr"
)

func TestValidateAccepts(t *testing.T) {
	ok := []string{
		"a", "a/b/c", "*", "**", "a/*/c", "a/**", "demo/$*x",
		"demo/prefix$*suffix", "@admin", "a/@admin/b",
	}
	for _, s := range ok {
		if err := keyexpr.Validate(s); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", s, err)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]error{
		"":           keyexpr.ErrEmpty,
		"a/":         keyexpr.ErrTrailingSlash,
		"a//b":       keyexpr.ErrEmptyChunk,
		"a#b":        keyexpr.ErrSharpOrQMark,
		"a?b":        keyexpr.ErrSharpOrQMark,
		"a/**/*":     keyexpr.ErrSingleStarAfterDoubleStar,
		"a/**/**":    keyexpr.ErrDoubleStarAfterDoubleStar,
		"a*b":        keyexpr.ErrStarInChunk,
		"a$b":        keyexpr.ErrLoneDollarStar,
		"a$$b":       keyexpr.ErrDollarAfterDollar,
		"a$":         keyexpr.ErrUnboundDollar,
	}
	for s, want := range cases {
		if err := keyexpr.Validate(s); err != want {
			t.Errorf("Validate(%q) = %v, want %v", s, err, want)
		}
	}
}

func TestIntersectionRegressions(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"a/*/c", "a/b/c", true},
		{"a/*/c", "a/c", false},
		{"a/**", "a/b/c/d", true},
		{"**", "@admin", false},
		{"demo/$*x", "demo/prefixx", true},
		{"demo/$*x", "demo/prefixxy", false},
	}
	for _, c := range cases {
		if got := keyexpr.Intersects(c.a, c.b); got != c.want {
			t.Errorf("Intersects(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestIntersectionSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"a/*/c", "a/b/c"},
		{"a/**", "a/b/c/d"},
		{"**", "@admin"},
		{"demo/$*x", "demo/prefixx"},
		{"a/**", "**"},
		{"@admin", "@admin"},
	}
	for _, p := range pairs {
		if keyexpr.Intersects(p[0], p[1]) != keyexpr.Intersects(p[1], p[0]) {
			t.Errorf("asymmetric intersection for %q, %q", p[0], p[1])
		}
	}
}

func TestIntersectionReflexivity(t *testing.T) {
	exprs := []string{"a", "a/b/c", "a/*/c", "a/**", "demo/$*x", "@admin"}
	for _, e := range exprs {
		if !keyexpr.Intersects(e, e) {
			t.Errorf("Intersects(%q, %q) = false, want true", e, e)
		}
	}
}

func TestVerbatimIsolation(t *testing.T) {
	if keyexpr.Intersects("*", "@admin") {
		t.Error("'*' must not intersect '@admin'")
	}
	if keyexpr.Intersects("**", "@admin") {
		t.Error("'**' must not intersect '@admin'")
	}
	if !keyexpr.Intersects("@admin", "@admin") {
		t.Error("identical verbatim chunks must intersect")
	}
	if keyexpr.Intersects("@admin", "@other") {
		t.Error("differing verbatim chunks must not intersect")
	}
}
