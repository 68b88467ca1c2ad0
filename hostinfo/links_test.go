package hostinfo

import "testing"

func TestStaticLinkLookupReturnsEmptyWhenUnseeded(t *testing.T) {
	lookup := NewStaticLinkLookup()
	defs, err := lookup.Lookup("Vxxx", "default")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if len(defs) != 0 {
		t.Errorf("expected no link definitions, got %d", len(defs))
	}
}

func TestStaticLinkLookupReturnsSeededValue(t *testing.T) {
	lookup := NewStaticLinkLookup()
	seeded := []LinkDefinition{{ActorID: "M123", ProviderKey: "Vxxx", LinkName: "default", ContractID: "wasmcloud:httpserver"}}
	lookup.Seed("Vxxx", "default", seeded)

	defs, err := lookup.Lookup("Vxxx", "default")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if len(defs) != 1 || defs[0].ContractID != "wasmcloud:httpserver" {
		t.Errorf("unexpected link definitions: %+v", defs)
	}

	if defs2, _ := lookup.Lookup("Vxxx", "other"); len(defs2) != 0 {
		t.Errorf("expected no definitions for unseeded link name, got %d", len(defs2))
	}
}
