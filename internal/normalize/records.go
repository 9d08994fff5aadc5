package normalize

import (
	"strings"

	"github.com/EmPi44/csv-matching/internal/model"
)

// RawOwner carries the mapped source columns of one owner row before
// normalization.
type RawOwner struct {
	OwnerID   string
	Project   string
	Building  string
	Unit      string
	Plot      string
	Area      string
	OwnerName string
	PartyType string
}

// RawTransaction carries the mapped source columns of one transaction row.
type RawTransaction struct {
	TxnID    string
	Project  string
	Building string
	Unit     string
	Plot     string
	Area     string
}

// Drop reasons reported per source.
const (
	DropMissingBuilding  = "missing_building"
	DropMissingArea      = "missing_area"
	DropMissingPartyType = "missing_party_type"
	DropNotBuyer         = "not_buyer"
	DropMissingTxnID     = "missing_txn_id"
	DropDuplicateOwnerID = "duplicate_owner_id"
)

// Result accumulates normalization outcomes for one source: retained
// records plus the per-reason drop counts and per-field value coercion
// counts surfaced in the QA report.
type OwnerResult struct {
	Records       []model.OwnerRecord
	Dropped       map[string]int
	ValueWarnings map[string]int
}

// TransactionResult is the transaction-side counterpart of OwnerResult.
type TransactionResult struct {
	Records       []model.TransactionRecord
	Dropped       map[string]int
	ValueWarnings map[string]int
}

// Owners normalizes raw owner rows, filtering to buyers, deriving owner
// ids where absent and dropping records missing mandatory fields. Dropped
// rows are counted, never fatal.
func (n *Normalizer) Owners(raws []RawOwner, propertyType string) OwnerResult {
	res := OwnerResult{
		Dropped:       make(map[string]int),
		ValueWarnings: make(map[string]int),
	}
	seen := make(map[string]bool, len(raws))

	for _, raw := range raws {
		building := n.CleanText(raw.Building)
		if building == "" {
			res.Dropped[DropMissingBuilding]++
			continue
		}
		if strings.TrimSpace(raw.Area) == "" {
			res.Dropped[DropMissingArea]++
			continue
		}
		party := n.CleanText(raw.PartyType)
		if party == "" {
			res.Dropped[DropMissingPartyType]++
			continue
		}
		if party != "buyer" {
			res.Dropped[DropNotBuyer]++
			continue
		}

		area, ok := n.AreaSqm(raw.Area)
		if !ok {
			res.ValueWarnings["area_sqm"]++
		}

		rec := model.OwnerRecord{
			Project:        n.CleanText(raw.Project),
			BuildingClean:  building,
			UnitNo:         n.UnitNumber(raw.Unit),
			PlotNo:         n.UnitNumber(raw.Plot),
			AreaSqm:        area,
			OwnerNameClean: n.CleanText(raw.OwnerName),
		}

		rec.OwnerID = strings.TrimSpace(raw.OwnerID)
		if rec.OwnerID == "" {
			rec.OwnerID = DeriveOwnerID(rec.BuildingClean, rec.UnitNo, rec.OwnerNameClean)
		}
		if seen[rec.OwnerID] {
			res.Dropped[DropDuplicateOwnerID]++
			continue
		}
		seen[rec.OwnerID] = true

		if propertyType == "villa" {
			rec.CompositeKey = PlotKey(rec.Project, rec.PlotNo)
		} else {
			rec.CompositeKey = CompositeKey(rec.Project, rec.BuildingClean, rec.UnitNo)
		}

		res.Records = append(res.Records, rec)
	}
	return res
}

// Transactions normalizes raw transaction rows. A missing unit number
// falls back to the transaction id as a placeholder, flagged so the fuzzy
// tier never treats it as a real unit match.
func (n *Normalizer) Transactions(raws []RawTransaction, propertyType string) TransactionResult {
	res := TransactionResult{
		Dropped:       make(map[string]int),
		ValueWarnings: make(map[string]int),
	}

	for _, raw := range raws {
		txnID := strings.TrimSpace(raw.TxnID)
		if txnID == "" {
			res.Dropped[DropMissingTxnID]++
			continue
		}
		building := n.CleanText(raw.Building)
		if building == "" {
			res.Dropped[DropMissingBuilding]++
			continue
		}
		if strings.TrimSpace(raw.Area) == "" {
			res.Dropped[DropMissingArea]++
			continue
		}

		area, ok := n.AreaSqm(raw.Area)
		if !ok {
			res.ValueWarnings["area_sqm"]++
		}

		rec := model.TransactionRecord{
			TxnID:         txnID,
			Project:       n.CleanText(raw.Project),
			BuildingClean: building,
			PlotNo:        n.UnitNumber(raw.Plot),
			AreaSqm:       area,
		}

		if strings.TrimSpace(raw.Unit) != "" {
			rec.UnitNo = n.UnitNumber(raw.Unit)
		} else {
			rec.UnitNo = txnID
			rec.UnitPlaceholder = true
		}

		if propertyType == "villa" {
			rec.CompositeKey = PlotKey(rec.Project, rec.PlotNo)
		} else {
			rec.CompositeKey = CompositeKey(rec.Project, rec.BuildingClean, rec.UnitNo)
		}

		res.Records = append(res.Records, rec)
	}
	return res
}
