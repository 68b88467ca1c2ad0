package hostinfo

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildAppliesDefaults(t *testing.T) {
	d := Build(Params{
		HostID:      "Nhostkey",
		ProviderKey: "Vxxx",
		LinkName:    "default",
	})

	if d.DefaultRPCTimeoutMS != defaultRPCTimeoutMS {
		t.Errorf("DefaultRPCTimeoutMS = %d, want %d", d.DefaultRPCTimeoutMS, defaultRPCTimeoutMS)
	}
	if d.EnvValues == nil {
		t.Error("EnvValues should be an empty map, not nil")
	}
	if d.LinkDefinitions == nil {
		t.Error("LinkDefinitions should be an empty slice, not nil")
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	d := Build(Params{
		HostID:             "Nhostkey",
		LatticeRPCPrefix:   "default",
		LinkName:           "default",
		ProviderKey:        "Vxxx",
		InstanceID:         "instance-1",
		LatticeRPCURL:      "127.0.0.1:4222",
		LatticeRPCTLS:      true,
		ClusterIssuers:     []string{"C1", "C2"},
		InvocationSeed:     "seed",
		EnableStructuredLogging: true,
		ConfigJSON:         `{"foo":"bar"}`,
		LinkDefinitions: []LinkDefinition{
			{ActorID: "M123", ProviderKey: "Vxxx", LinkName: "default", ContractID: "wasmcloud:httpserver"},
		},
	})

	line, err := EncodeStdinLine(d)
	if err != nil {
		t.Fatalf("EncodeStdinLine returned error: %v", err)
	}
	if !strings.HasSuffix(string(line), "\n") {
		t.Fatal("encoded line must end with a newline")
	}
	if strings.Count(string(line), "\n") != 1 {
		t.Fatal("encoded line must contain exactly one newline")
	}

	decoded, err := DecodeStdinLine(line)
	if err != nil {
		t.Fatalf("DecodeStdinLine returned error: %v", err)
	}

	if !reflect.DeepEqual(d, decoded) {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", d, decoded)
	}
}

func TestDefaultReturnsFullTuple(t *testing.T) {
	d := Default()
	if d.DefaultRPCTimeoutMS != defaultRPCTimeoutMS {
		t.Errorf("Default().DefaultRPCTimeoutMS = %d, want %d", d.DefaultRPCTimeoutMS, defaultRPCTimeoutMS)
	}
	if d.EnvValues == nil {
		t.Error("Default() EnvValues must not be nil")
	}
	if d.LinkDefinitions == nil {
		t.Error("Default() LinkDefinitions must not be nil")
	}
}
