package form

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustDecode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return v
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "blank service disappears",
			in: `{"services":[{"id":"service-1","serviceType":"","dealDetails":"",
				"guarantee":{"id":"g-1","typeGuarantee":"","startDate":"","endDate":"","terms":"","notes":""}}]}`,
			want: `null`,
		},
		{
			name: "service without real guarantee drops the guarantee key",
			in: `{"services":[{"id":"service-1","serviceType":"polish","dealDetails":"",
				"guarantee":{"id":"g-1","typeGuarantee":"","startDate":"","endDate":"","terms":"t","notes":""}}]}`,
			want: `{"services":[{"id":"service-1","serviceType":"polish"}]}`,
		},
		{
			name: "deal details alone keep the service",
			in:   `{"services":[{"id":"service-2","serviceType":"","dealDetails":"خصم"}]}`,
			want: `{"services":[{"id":"service-2","dealDetails":"خصم"}]}`,
		},
		{
			name: "guarantee type alone keeps the service and dates are stamped",
			in: `{"services":[{"id":"service-3","serviceType":"",
				"guarantee":{"id":"g-3","typeGuarantee":"2 سنوات","startDate":"2024-01-01","endDate":"2025-12-31","terms":"","notes":""}}]}`,
			want: `{"services":[{"id":"service-3",
				"guarantee":{"id":"g-3","typeGuarantee":"2 سنوات","startDate":"2024-01-01T00:00:00Z","endDate":"2025-12-31T00:00:00Z"}}]}`,
		},
		{
			name: "guarantee with only a start date survives pruning but not service retention",
			in: `{"services":[{"id":"service-4","guarantee":{"id":"g-4","startDate":"2024-01-01"}},
				{"id":"service-5","serviceType":"insulator"}]}`,
			want: `{"services":[{"id":"service-5","serviceType":"insulator"}]}`,
		},
		{
			name: "order of retained services is preserved",
			in: `{"client":{"firstName":"سارة","email":""},"order":{"carSummary":{"carModel":"","carPlateNumber":"ABC1234"},
				"services":[{"id":"service-1","serviceType":"polish"},{"id":"service-2"},{"id":"service-3","serviceType":"additions"}]}}`,
			want: `{"client":{"firstName":"سارة"},"order":{"carSummary":{"carPlateNumber":"ABC1234"},
				"services":[{"id":"service-1","serviceType":"polish"},{"id":"service-3","serviceType":"additions"}]}}`,
		},
		{
			name: "empty services array is removed from its parent",
			in:   `{"client":{"firstName":"علي"},"order":{"services":[{"id":"service-1"}]}}`,
			want: `{"client":{"firstName":"علي"}}`,
		},
		{
			name: "guarantee whose dates prune to nothing is blank",
			in: `{"services":[{"id":"s","serviceType":"polish",
				"guarantee":{"id":"g","startDate":[""],"endDate":{"x":""}}}]}`,
			want: `{"services":[{"id":"s","serviceType":"polish"}]}`,
		},
		{
			name: "unparseable date kept verbatim",
			in:   `{"guarantee":{"typeGuarantee":"1 سنة","startDate":"tomorrow"}}`,
			want: `{"guarantee":{"typeGuarantee":"1 سنة","startDate":"tomorrow"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(mustDecode(t, tt.in))
			if diff := cmp.Diff(mustDecode(t, tt.want), got); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	fixtures := []string{
		`{"services":[{"id":"service-1","serviceType":"","guarantee":{"id":"g","typeGuarantee":"","startDate":"","endDate":""}}]}`,
		`{"services":[{"id":"service-1","serviceType":"protection","protectionFinish":"glossy","protectionSize":"",
			"guarantee":{"id":"g","typeGuarantee":"3 سنوات","startDate":"2024-05-01","endDate":"2027-04-30","terms":"","notes":"n"}}]}`,
		`{"client":{"carSummary":{"carPlateNumber":""}},"order":{"services":[]}}`,
		`{"a":[[],[{}],[{"b":""}]],"c":0,"d":false,"guarantee":{"endDate":"2024-01-01T10:00:00+03:00"}}`,
		`[{"services":[{"dealDetails":"x"}]},{"services":[{"id":"y"}]}]`,
		`{"services":[{"id":"s","serviceType":"polish","guarantee":{"id":"g","startDate":[""]}}]}`,
		`{"services":[{"id":"s","guarantee":{"id":"g","typeGuarantee":{"x":""},"terms":"t"}}]}`,
	}
	for _, f := range fixtures {
		once := Normalize(mustDecode(t, f))
		twice := Normalize(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("normalize not idempotent for %s (-once +twice):\n%s", f, diff)
		}
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	const in = `{"services":[{"id":"s","serviceType":"polish","guarantee":{"typeGuarantee":"1 سنة","startDate":"2024-01-01","terms":""}}]}`
	v := mustDecode(t, in)
	_ = Normalize(v)
	if diff := cmp.Diff(mustDecode(t, in), v); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}
