package hook

import (
	"context"
	"testing"
)

func nop(ctx context.Context, d *Delivery) error { return nil }

func TestParseKey(t *testing.T) {
	cases := []struct {
		in   string
		want Key
	}{
		{"issues", Key{Event: "issues"}},
		{"issues.opened", Key{Event: "issues", Action: "opened"}},
		{"pull_request.closed", Key{Event: "pull_request", Action: "closed"}},
		// only the first dot splits
		{"a.b.c", Key{Event: "a", Action: "b.c"}},
	}
	for _, tc := range cases {
		if got := ParseKey(tc.in); got != tc.want {
			t.Errorf("ParseKey(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestKeyString_RoundTrip(t *testing.T) {
	for _, s := range []string{"issues", "issues.opened"} {
		if got := ParseKey(s).String(); got != s {
			t.Errorf("ParseKey(%q).String() = %q", s, got)
		}
	}
}

func TestRegistry_MatchOrderAndDualKeys(t *testing.T) {
	r := NewRegistry()
	r.On("issues", "h1", nop)
	r.On("issues.opened", "h2", nop)
	r.On("issues", "h3", nop)

	matched := r.Match("issues", "opened")
	want := []string{"h1", "h3", "h2"} // bare-event registrations first, in order
	if len(matched) != len(want) {
		t.Fatalf("Match returned %d handlers, want %d", len(matched), len(want))
	}
	for i, reg := range matched {
		if reg.Name != want[i] {
			t.Errorf("matched[%d] = %q, want %q", i, reg.Name, want[i])
		}
	}
}

func TestRegistry_HandlerUnderBothKeysRunsPerRegistration(t *testing.T) {
	r := NewRegistry()
	// Same function registered under both keys — it must appear once per
	// registration, i.e. twice for a matching delivery.
	r.On("issues", "both", nop)
	r.On("issues.opened", "both", nop)

	if got := len(r.Match("issues", "opened")); got != 2 {
		t.Errorf("Match = %d registrations, want 2", got)
	}
}

func TestRegistry_NoActionSkipsActionKey(t *testing.T) {
	r := NewRegistry()
	r.On("push", "onPush", nop)
	r.On("push.", "weird", nop)

	matched := r.Match("push", "")
	if len(matched) != 1 || matched[0].Name != "onPush" {
		t.Errorf("Match without action = %+v, want only onPush", matched)
	}
}

func TestRegistry_NoMatch(t *testing.T) {
	r := NewRegistry()
	r.On("issues.opened", "h", nop)

	if got := r.Match("pull_request", "opened"); len(got) != 0 {
		t.Errorf("Match unrelated event = %d handlers, want 0", len(got))
	}
	if got := r.Match("issues", "closed"); len(got) != 0 {
		t.Errorf("Match unrelated action = %d handlers, want 0", len(got))
	}
}

func TestDelivery_PayloadHelpers(t *testing.T) {
	d := &Delivery{
		Payload: map[string]any{
			"action": "opened",
			"repository": map[string]any{
				"name":  "playground",
				"owner": map[string]any{"login": "sakif"},
			},
			"issue": map[string]any{"number": float64(42)},
		},
	}

	if got := d.Str("repository", "owner", "login"); got != "sakif" {
		t.Errorf("Str = %q, want sakif", got)
	}
	if got := d.Int("issue", "number"); got != 42 {
		t.Errorf("Int = %d, want 42", got)
	}
	if got := d.Str("repository", "missing"); got != "" {
		t.Errorf("Str on missing path = %q, want empty", got)
	}
	if _, ok := d.Lookup("issue", "number", "too-deep"); ok {
		t.Error("Lookup through a non-object should report false")
	}
}
