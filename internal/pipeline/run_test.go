package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/EmPi44/csv-matching/internal/config"
)

const ownersCSV = `NameEn,ProjectNameEn,BuildingNameEn,UnitNumber,Size,ProcedurePartyTypeNameEn
Jane Doe,Marina Heights,BLDG 2,12,1200,Buyer
John Roe,Marina Heights,BLDG 2,14,1210,Buyer
Max Moe,Marina Heights,Tower 9,77,1500,Buyer
Sam Seller,Marina Heights,BLDG 2,15,1200,Seller
`

// T-001 joins Jane's key exactly within the 1% area window; T-002 carries
// a building typo so it can only reach John through the fuzzy tier; T-003
// matches nobody.
const txnsCSV = `transaction_id,project_name_en,building_name_en,unit_number,procedure_area
T-001,Marina Heights,Tower 2,12,1205
T-002,Marina Heights,Towr 2,14,1210
T-003,Marina Heights,Tower 5,99,2000
`

func writeSources(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	owners := filepath.Join(dir, "owners.csv")
	txns := filepath.Join(dir, "transactions.csv")
	if err := os.WriteFile(owners, []byte(ownersCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(txns, []byte(txnsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	return owners, txns
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	// The fixture carries a unit column; the default mapping does not.
	cfg.Transactions.Columns["unit"] = "unit_number"
	// Source areas are already square meters.
	cfg.Matching.SqftThreshold = 0
	cfg.Pipeline.Workers = 2
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	owners, txns := writeSources(t)
	outDir := t.TempDir()

	res, err := Run(Options{
		OwnersPath:       owners,
		TransactionsPath: txns,
		Config:           testConfig(t),
		RunID:            "test_run",
		OutputDir:        filepath.Join(outDir, "out"),
		ReviewDir:        filepath.Join(outDir, "review"),
	})
	if err != nil {
		t.Fatal(err)
	}

	s := res.Summary
	if s.Owners.RawRows != 4 || s.Owners.Normalized != 3 {
		t.Errorf("owners: raw %d normalized %d, want 4/3", s.Owners.RawRows, s.Owners.Normalized)
	}
	if s.Transactions.Normalized != 3 {
		t.Errorf("transactions normalized = %d, want 3", s.Transactions.Normalized)
	}

	// Jane's unit key joins T-001 exactly within the 1% window; John
	// reaches T-002 through the fuzzy tier despite the building typo.
	if s.Tier1Matches != 1 {
		t.Errorf("tier 1 matches = %d, want 1", s.Tier1Matches)
	}
	if s.Tier2Matches != 1 {
		t.Errorf("tier 2 matches = %d, want 1", s.Tier2Matches)
	}
	if s.Tier1Matches+s.Tier2Matches != s.TotalMatches {
		t.Errorf("tier counts do not add up: %d + %d != %d",
			s.Tier1Matches, s.Tier2Matches, s.TotalMatches)
	}
	if s.TotalMatches+s.UnmatchedOwners != s.Owners.Normalized {
		t.Errorf("matched %d + unmatched %d != %d owners",
			s.TotalMatches, s.UnmatchedOwners, s.Owners.Normalized)
	}
	if len(s.ConsistencyWarnings) != 0 {
		t.Errorf("unexpected warnings: %v", s.ConsistencyWarnings)
	}

	for _, name := range []string{"matches.csv", "owners_unmatched.csv", "transactions_unmatched.csv", "qa_report.md"} {
		if _, err := os.Stat(filepath.Join(outDir, "out", name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(res.MatchesPath)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "T-001") {
		t.Error("matches.csv does not contain the deterministic match")
	}
	if !strings.Contains(content, "tier1_deterministic") || !strings.Contains(content, "tier2_fuzzy") {
		t.Error("matches.csv does not record both match methods")
	}
}

func TestRunIsReproducible(t *testing.T) {
	owners, txns := writeSources(t)
	cfg := testConfig(t)

	run := func(dir string) string {
		t.Helper()
		res, err := Run(Options{
			OwnersPath:       owners,
			TransactionsPath: txns,
			Config:           cfg,
			RunID:            "fixed_run",
			OutputDir:        filepath.Join(dir, "out"),
			ReviewDir:        filepath.Join(dir, "review"),
		})
		if err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(res.MatchesPath)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	first := run(t.TempDir())
	second := run(t.TempDir())
	if first != second {
		t.Error("identical inputs and run id produced different matches.csv")
	}
}

func TestRunSchemaErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	owners := filepath.Join(dir, "owners.csv")
	if err := os.WriteFile(owners, []byte("Name_EN,Unit_Number\nJane,12\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	txns := filepath.Join(dir, "transactions.csv")
	if err := os.WriteFile(txns, []byte(txnsCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Run(Options{
		OwnersPath:       owners,
		TransactionsPath: txns,
		Config:           testConfig(t),
		OutputDir:        filepath.Join(dir, "out"),
		ReviewDir:        filepath.Join(dir, "review"),
	})
	if err == nil {
		t.Fatal("missing required columns did not fail the run")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out", "matches.csv")); statErr == nil {
		t.Error("artifacts written despite schema failure")
	}
}
