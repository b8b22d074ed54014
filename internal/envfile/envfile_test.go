package envfile

import (
	"reflect"
	"testing"

	"github.com/live-labs/labkeys/internal/settings"
)

func flatten(t *testing.T, input string) []string {
	t.Helper()
	doc, err := settings.ParseDocument([]byte(input))
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}
	lines, err := Flatten(doc)
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	return lines
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "nested object with space",
			input: `{"A":{"B":"c d"}}`,
			want:  []string{`A__B="c d"`},
		},
		{
			name: "lab settings",
			input: `{
				"AzureOpenAI": {"Endpoint": "https://example.openai.azure.com/", "ApiKey": "k=1 2"},
				"ModelName": "gpt-4o",
				"MaxTokens": 800
			}`,
			want: []string{
				"AZUREOPENAI__ENDPOINT=https://example.openai.azure.com/",
				`AZUREOPENAI__APIKEY="k=1 2"`,
				"MODELNAME=gpt-4o",
				"MAXTOKENS=800",
			},
		},
		{
			name:  "scalars",
			input: `{"t":true,"f":false,"n":null,"x":1.5,"arr":[1, "a b"]}`,
			want: []string{
				"T=True",
				"F=False",
				"N=",
				"X=1.5",
				`ARR="[1, 'a b']"`,
			},
		},
		{
			name:  "floats print like python",
			input: `{"a":1.50,"b":2.0,"c":1e3,"d":1e16,"e":0.00001,"f":-0.0,"g":10}`,
			want:  []string{"A=1.5", "B=2.0", "C=1000.0", "D=1e+16", "E=1e-05", "F=-0.0", "G=10"},
		},
		{
			name:  "list literals",
			input: `{"mixed":[true,null,2.50,{"k":"v"},[]],"words":["x","y"],"empty":[]}`,
			want: []string{
				`MIXED="[True, None, 2.5, {'k': 'v'}, []]"`,
				`WORDS="['x', 'y']"`,
				"EMPTY=[]",
			},
		},
		{
			name:  "list strings are escaped",
			input: `{"q":["say \"hi\"","it's","a\\b"]}`,
			want:  []string{`Q="['say \"hi\"', 'it\'s', 'a\\b']"`},
		},
		{
			name:  "quote triggers",
			input: `{"hash":"a#b","eq":"a=b","sq":"it's","dq":"say \"hi\"","plain":"abc"}`,
			want: []string{
				`HASH="a#b"`,
				`EQ="a=b"`,
				`SQ="it's"`,
				`DQ="say "hi""`,
				"PLAIN=abc",
			},
		},
		{
			name:  "deep nesting keeps order",
			input: `{"z":{"y":{"x":"1"},"w":"2"},"a":"3"}`,
			want:  []string{"Z__Y__X=1", "Z__W=2", "A=3"},
		},
		{
			name:  "empty object yields nothing",
			input: `{"a":{},"b":"1"}`,
			want:  []string{"B=1"},
		},
		{
			name:  "escaped string",
			input: `{"s":"line\u00e9"}`,
			want:  []string{"S=lineé"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := flatten(t, tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlattenEmptyDocument(t *testing.T) {
	if got := flatten(t, `{}`); len(got) != 0 {
		t.Errorf("Expected no lines, got %q", got)
	}
}

func TestRender(t *testing.T) {
	got := string(Render([]string{"A=1", "B=2"}))
	if got != "A=1\nB=2\n" {
		t.Errorf("got %q", got)
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	lines := flatten(t, `{"Db":{"Host":"localhost","Password":"p w"},"Port":5432}`)

	vars, err := Parse(Render(lines))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := map[string]string{
		"DB__HOST":     "localhost",
		"DB__PASSWORD": "p w",
		"PORT":         "5432",
	}
	if !reflect.DeepEqual(vars, want) {
		t.Errorf("got %v, want %v", vars, want)
	}

	names := Names(vars)
	if !reflect.DeepEqual(names, []string{"DB__HOST", "DB__PASSWORD", "PORT"}) {
		t.Errorf("Names: got %v", names)
	}
}

func TestRenderParseRoundTripLists(t *testing.T) {
	lines := flatten(t, `{"Models":["gpt-4o","gpt 4o mini"],"Flags":[true,false],"Quoted":["say \"hi\""]}`)

	vars, err := Parse(Render(lines))
	if err != nil {
		t.Fatalf("Parse failed on %q: %v", lines, err)
	}

	want := map[string]string{
		"MODELS": "['gpt-4o', 'gpt 4o mini']",
		"FLAGS":  "[True, False]",
		"QUOTED": `['say "hi"']`,
	}
	if !reflect.DeepEqual(vars, want) {
		t.Errorf("got %v, want %v", vars, want)
	}
}
