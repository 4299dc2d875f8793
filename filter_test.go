package prowl

import "testing"

type filterTester struct {
	data    Data
	trivial bool
}

func (ft *filterTester) runTest(test *testing.T, name string) {
	if got := TrivialData(ft.data); got != ft.trivial {
		test.Errorf("[%s] expected trivial=%v, got %v for %v", name, ft.trivial, got, ft.data)
	}
}

var filterTests = map[string]*filterTester{
	"empty": {
		data:    Data{},
		trivial: true,
	},
	"nil-values": {
		data:    Data{"a": nil, "b": nil},
		trivial: true,
	},
	"dashes-only": {
		data:    Data{"port": "-", "service": "-", "banner": ""},
		trivial: true,
	},
	"zero-result-marker": {
		data:    Data{"status": "no_open_ports"},
		trivial: true,
	},
	"mixed-placeholders": {
		data:    Data{"a": "-", "b": "null", "c": "None", "d": "0", "e": 0},
		trivial: true,
	},
	"empty-collections": {
		data:    Data{"records": []any{}, "meta": map[string]any{}},
		trivial: true,
	},
	"real-port": {
		data:    Data{"port": 443, "service": "-"},
		trivial: false,
	},
	"real-text": {
		data:    Data{"msg": "X-Frame-Options header is not present"},
		trivial: false,
	},
	"no-prefix-in-sentence": {
		data:    Data{"msg": "no issues were found here"},
		trivial: false,
	},
	"boolean-value": {
		data:    Data{"tls": false},
		trivial: false,
	},
}

func TestTrivialData(t *testing.T) {
	for tname, cfg := range filterTests {
		cfg.runTest(t, tname)
	}
}

func TestFilterFindings(t *testing.T) {
	findings := []*Finding{
		NewFinding("10.0.0.5", "netscan", "Network Security", Data{"port": 443}),
		NewFinding("10.0.0.5", "netscan", "Network Security", Data{"status": "no_open_ports"}),
		NewFinding("10.0.0.5", "netscan", "Network Security", Data{}),
	}

	kept := FilterFindings(findings)
	if len(kept) != 1 {
		t.Fatalf("expected 1 finding to survive, got %d", len(kept))
	}
	if kept[0].Data()["port"] != 443 {
		t.Errorf("wrong finding survived: %v", kept[0].Data())
	}
}
