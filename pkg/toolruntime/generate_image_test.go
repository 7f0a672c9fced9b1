package toolruntime

import (
	"testing"

	"github.com/inkwell-ai/chatcore/pkg/domain"
)

func TestMeResolutionExpandsNameOnly(t *testing.T) {
	me := meResolution{Name: "Aria"}
	got := me.expand("a portrait of {{me}} at sunset")
	want := "a portrait of Aria at sunset"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMeResolutionExpandsNameAndAppearance(t *testing.T) {
	me := meResolution{Name: "Aria", Appearance: "silver hair, green eyes"}
	got := me.expand("{{me}} smiling")
	want := "Aria, silver hair, green eyes smiling"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMeResolutionLeavesPromptUntouchedWithoutPlaceholder(t *testing.T) {
	me := meResolution{Name: "Aria"}
	got := me.expand("a castle on a hill")
	if got != "a castle on a hill" {
		t.Fatalf("expected unchanged prompt, got %q", got)
	}
}

func TestImageProviderWireShapeMapsSupportedKinds(t *testing.T) {
	cases := []struct {
		kind domain.ImageGenProviderKind
		want string
	}{
		{domain.ImageGenProviderOpenAI, "openai"},
		{domain.ImageGenProviderGrok, "grok"},
	}
	for _, c := range cases {
		got, ok := imageProviderWireShape(c.kind)
		if !ok {
			t.Fatalf("expected %s to be supported", c.kind)
		}
		if got != c.want {
			t.Fatalf("expected %q, got %q", c.want, got)
		}
	}
}

func TestImageProviderWireShapeRejectsUnsupportedKind(t *testing.T) {
	_, ok := imageProviderWireShape(domain.ImageGenProviderGoogleImagen)
	if ok {
		t.Fatalf("expected google imagen to be unsupported")
	}
}
