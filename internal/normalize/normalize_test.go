package normalize

import (
	"testing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase and trim",
			input: "  Marina   Heights ",
			want:  "marina heights",
		},
		{
			name:  "building synonym bldg",
			input: "BLDG 2",
			want:  "tower 2",
		},
		{
			name:  "building synonym block",
			input: "Block B",
			want:  "tower b",
		},
		{
			name:  "roman numeral",
			input: "Building VII",
			want:  "tower 7",
		},
		{
			name:  "roman numeral viii not decomposed",
			input: "tower viii",
			want:  "tower 8",
		},
		{
			name:  "fullwidth unicode folds to ascii",
			input: "Ｔｏｗｅｒ　１",
			want:  "tower 1",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	n := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.CleanText(tt.input); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanTextEquivalentForms(t *testing.T) {
	// The whole point of the synonym and numeral folding is that these
	// spellings compare equal afterwards.
	n := New(nil)
	forms := []string{"Building 2", "BLDG 2", "tower 2", "Block II"}
	want := n.CleanText(forms[0])
	for _, f := range forms[1:] {
		if got := n.CleanText(f); got != want {
			t.Errorf("CleanText(%q) = %q, want %q", f, got, want)
		}
	}
}

func TestUnitNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"12", "0012"},
		{"1203", "1203"},
		{"Unit 1203A", "1203"},
		{"G-05", "0005"},
		{"PH", "PH"},
		{"", ""},
	}

	n := New(nil)
	for _, tt := range tests {
		if got := n.UnitNumber(tt.input); got != tt.want {
			t.Errorf("UnitNumber(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAreaSqm(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		threshold float64
		want      float64
		wantOK    bool
	}{
		{
			name:      "already square meters above threshold",
			input:     "1200",
			threshold: 1000,
			want:      1200,
			wantOK:    true,
		},
		{
			name:      "square feet converted",
			input:     "500",
			threshold: 1000,
			want:      46.45,
			wantOK:    true,
		},
		{
			name:      "thousands separator stripped",
			input:     "1,250.5",
			threshold: 1000,
			want:      1250.5,
			wantOK:    true,
		},
		{
			name:      "inference disabled keeps small values",
			input:     "120.5",
			threshold: 0,
			want:      120.5,
			wantOK:    true,
		},
		{
			name:      "empty is the zero sentinel without a warning",
			input:     "",
			threshold: 1000,
			want:      0,
			wantOK:    true,
		},
		{
			name:      "malformed coerces with a warning",
			input:     "n/a",
			threshold: 1000,
			want:      0,
			wantOK:    false,
		},
		{
			name:      "negative coerces with a warning",
			input:     "-45",
			threshold: 1000,
			want:      0,
			wantOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(nil)
			n.SqftThreshold = tt.threshold
			got, ok := n.AreaSqm(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("AreaSqm(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestOwners(t *testing.T) {
	raws := []RawOwner{
		{Project: "Marina Heights", Building: "BLDG 2", Unit: "12", Area: "1200", OwnerName: "Jane Doe", PartyType: "Buyer"},
		{Project: "Marina Heights", Building: "BLDG 2", Unit: "14", Area: "1200", OwnerName: "Sam Seller", PartyType: "Seller"},
		{Project: "Marina Heights", Building: "", Unit: "15", Area: "1200", OwnerName: "No Building", PartyType: "Buyer"},
		{Project: "Marina Heights", Building: "BLDG 3", Unit: "16", Area: "", OwnerName: "No Area", PartyType: "Buyer"},
		// Same derived id as the first row.
		{Project: "Marina Heights", Building: "Building 2", Unit: "12", Area: "1200", OwnerName: "Jane Doe", PartyType: "Buyer"},
	}

	res := New(nil).Owners(raws, "apartment")

	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	rec := res.Records[0]
	if rec.OwnerID != "tower_2_0012_jane_doe" {
		t.Errorf("derived owner id = %q", rec.OwnerID)
	}
	if rec.CompositeKey != "marina heights|tower 2|0012" {
		t.Errorf("composite key = %q", rec.CompositeKey)
	}
	if rec.AreaSqm != 1200 {
		t.Errorf("area = %v, want 1200", rec.AreaSqm)
	}

	wantDropped := map[string]int{
		DropNotBuyer:         1,
		DropMissingBuilding:  1,
		DropMissingArea:      1,
		DropDuplicateOwnerID: 1,
	}
	for reason, want := range wantDropped {
		if got := res.Dropped[reason]; got != want {
			t.Errorf("dropped[%s] = %d, want %d", reason, got, want)
		}
	}
}

func TestOwnersVillaKeysOnPlot(t *testing.T) {
	raws := []RawOwner{
		{OwnerID: "o1", Project: "Palm Villas", Building: "Villa District", Plot: "88", Area: "2500", OwnerName: "Jane Doe", PartyType: "Buyer"},
	}
	res := New(nil).Owners(raws, "villa")
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	if got := res.Records[0].CompositeKey; got != "palm villas|0088" {
		t.Errorf("villa key = %q, want %q", got, "palm villas|0088")
	}
}

func TestTransactions(t *testing.T) {
	raws := []RawTransaction{
		{TxnID: "T-9", Project: "Marina Heights", Building: "Tower 2", Unit: "12", Area: "1200"},
		{TxnID: "T-10", Project: "Marina Heights", Building: "Tower 2", Unit: "", Area: "1200"},
		{TxnID: "", Project: "Marina Heights", Building: "Tower 2", Unit: "13", Area: "1200"},
		{TxnID: "T-11", Project: "Marina Heights", Building: "Tower 2", Unit: "14", Area: "oops"},
	}

	res := New(nil).Transactions(raws, "apartment")

	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(res.Records))
	}
	if res.Records[0].UnitNo != "0012" || res.Records[0].UnitPlaceholder {
		t.Errorf("real unit mishandled: %+v", res.Records[0])
	}

	// Missing unit falls back to the txn id, flagged as a placeholder.
	ph := res.Records[1]
	if ph.UnitNo != "T-10" || !ph.UnitPlaceholder {
		t.Errorf("placeholder unit: got (%q, %v), want (%q, true)", ph.UnitNo, ph.UnitPlaceholder, "T-10")
	}

	if got := res.Dropped[DropMissingTxnID]; got != 1 {
		t.Errorf("dropped[%s] = %d, want 1", DropMissingTxnID, got)
	}
	if got := res.ValueWarnings["area_sqm"]; got != 1 {
		t.Errorf("value warnings = %d, want 1", got)
	}
	// Coerced area keeps the record with the zero sentinel.
	if res.Records[2].TxnID != "T-11" || res.Records[2].AreaSqm != 0 {
		t.Errorf("coerced record: %+v", res.Records[2])
	}
}

func TestSharedCacheIsConsistent(t *testing.T) {
	cache := NewCache()
	a := New(cache)
	b := New(cache)
	if a.CleanText("BLDG 5") != b.CleanText("BLDG 5") {
		t.Error("normalizers sharing a cache disagree")
	}
}
