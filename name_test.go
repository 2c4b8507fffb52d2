package observable

import (
	"strings"
	"testing"
	"time"

	"syreclabs.com/go/faker"
)

func init() {
	faker.Seed(time.Now().UnixNano())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"words", "Event Happened", "eventHappened"},
		{"hyphen", "event-Happened", "eventHappened"},
		{"hyphen lowercase", "event-happened", "eventHappened"},
		{"already canonical", "eventHappened", "eventHappened"},
		{"surrounding space", "  Order placed  ", "orderPlaced"},
		{"separator run", "order -  placed", "orderPlaced"},
		{"leading hyphen", "-order placed", "orderPlaced"},
		{"separator before digit kept", "order 2", "order 2"},
		{"single letter", "X", "x"},
		{"empty", "", ""},
		{"blank", "   ", ""},
		{"unicode", "Über grün", "überGrün"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Event Happened",
		"event-Happened",
		" -a",
		"a - 1",
		"A--b  C",
		"\tTabbed\tname",
	}
	for i := 0; i < 100; i++ {
		inputs = append(inputs,
			faker.Lorem().Sentence(faker.RandomInt(1, 6)),
			strings.Join(faker.Lorem().Words(faker.RandomInt(1, 4)), "-"),
			faker.Lorem().String(),
		)
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeSameEvent(t *testing.T) {
	d := New(WithTracing(false), WithMetrics(false))
	rec := NewRecorder(nil)
	if _, err := d.Subscribe(testCtx, "Event Happened", rec, ""); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := d.Fire(testCtx, "event-happened"); err != nil {
		t.Fatalf("Fire failed: %v", err)
	}
	if rec.Count() != 1 {
		t.Errorf("expected 1 call, got %d", rec.Count())
	}
	if got := d.Events(); len(got) != 1 || got[0] != "eventHappened" {
		t.Errorf("expected single event eventHappened, got %v", got)
	}
}
