package attrs

import (
	"log"
	"regexp"
	"strings"

	"domus/models"
)

// Attribute table labels.
const (
	LabelName          = "物件名"
	LabelAddress       = "住所"
	LabelPrice         = "価格"
	LabelExclusiveArea = "専有面積"
	LabelCommonArea    = "その他面積"
	LabelLayout        = "間取り"
	LabelDirection     = "向き"
	LabelFloor         = "所在階"
	LabelManageFee     = "管理費"
	LabelRepairReserve = "修繕積立金"
	LabelRepairFund    = "修繕積立基金"
	LabelOtherCosts    = "諸費用"
)

var (
	floorLabelRegex      = regexp.MustCompile(`^所在階`)
	totalFloorLabelRegex = regexp.MustCompile(`階建`)
	structureLabelRegex  = regexp.MustCompile(`構造`)
	completionLabelRegex = regexp.MustCompile(`(完成時期|築年月)`)
)

// Attributes holds every field read from one listing's attribute table.
type Attributes struct {
	Name           Field[string]
	Address        Field[string]
	Price          Field[float64]
	ExclusiveArea  Field[float64]
	CommonArea     Field[float64]
	CompletionDate Field[string]
	Layout         Field[Layout]
	Direction      Field[string]
	Floor          Field[int]
	TotalFloors    Field[int]
	BuildType      Field[string]
	Pet            bool

	ManageFee     Field[float64]
	RepairReserve Field[float64]
	RepairFund    Field[float64]
	OtherCosts    Field[float64]
}

// MonthlyFeeTotal sums the four fee components. Missing components count as 0.
func (a *Attributes) MonthlyFeeTotal() float64 {
	total := 0.0
	for _, f := range []Field[float64]{a.ManageFee, a.RepairReserve, a.RepairFund, a.OtherCosts} {
		if v, ok := f.Get(); ok {
			total += v
		}
	}
	return total
}

// Parse reads the attributes of a stored listing. The first Fatal field is
// returned as a *ParseError carrying the listing id; missing fields are
// logged and skipped.
func Parse(rec *models.DetailRecord) (*Attributes, error) {
	p := &listingParser{rec: rec}
	a := &Attributes{}

	a.Name = p.text(LabelName)
	a.Address = firstLine(p.text(LabelAddress))
	a.Price = p.exact(LabelPrice, ParsePrice)
	a.ExclusiveArea = p.exact(LabelExclusiveArea, ParseArea)
	a.CommonArea = p.exact(LabelCommonArea, SumAreas)
	a.CompletionDate = matched(p, completionLabelRegex, "completion date", ParseCompletionDate)
	a.Layout = exactField(p, LabelLayout, ParseLayout)
	a.Direction = p.text(LabelDirection)
	a.Pet = IsPetListing(rec.Search.Title)

	if _, ok := rec.Get(LabelFloor); ok {
		a.Floor = exactField(p, LabelFloor, ParseFloor)
	} else {
		a.Floor = matched(p, floorLabelRegex, LabelFloor, ParseFloor)
	}
	a.TotalFloors = matched(p, totalFloorLabelRegex, "total floors", ParseTotalFloors)
	if s, ok := rec.FirstMatch(structureLabelRegex); ok {
		a.BuildType = parsed(ParseBuildType(s))
	} else {
		a.BuildType = skipped[string]("no 構造 label")
	}

	a.ManageFee = p.exact(LabelManageFee, ParseMonthlyFee)
	a.RepairReserve = p.exact(LabelRepairReserve, ParseMonthlyFee)
	a.RepairFund = p.exact(LabelRepairFund, ParseMonthlyFee)
	a.OtherCosts = p.exact(LabelOtherCosts, ParseMonthlyFee)

	if p.err != nil {
		return nil, p.err
	}
	return a, nil
}

// Apply writes the parsed fields into row. Skipped fields leave no column.
func (a *Attributes) Apply(row *models.FeatureRecord) {
	setIf(row, "name", a.Name)
	setIf(row, "address", a.Address)
	setIf(row, "price", a.Price)
	setIf(row, "exclusive_area", a.ExclusiveArea)
	setIf(row, "common_area", a.CommonArea)
	setIf(row, "completion_date", a.CompletionDate)
	if l, ok := a.Layout.Get(); ok {
		row.Set("layout_main", l.Main)
		row.Set("layout_storage_room", l.StorageRooms)
	}
	setIf(row, "direction", a.Direction)
	row.Set("pet", a.Pet)
	setIf(row, "floor", a.Floor)
	setIf(row, "total_floors", a.TotalFloors)
	setIf(row, "build_type", a.BuildType)
	setIf(row, "monthly_fee_manage", a.ManageFee)
	setIf(row, "monthly_fee_repair", a.RepairReserve)
	setIf(row, "monthly_fee_repair_fund", a.RepairFund)
	setIf(row, "monthly_fee_others", a.OtherCosts)
	row.Set("monthly_fee_total", a.MonthlyFeeTotal())
}

func setIf[T any](row *models.FeatureRecord, column string, f Field[T]) {
	if v, ok := f.Get(); ok {
		row.Set(column, v)
	}
}

// listingParser keeps the first fatal field so Parse can report it after
// all lookups ran.
type listingParser struct {
	rec *models.DetailRecord
	err error
}

func (p *listingParser) text(label string) Field[string] {
	s, ok := p.rec.Get(label)
	if !ok {
		p.missing(label)
		return skipped[string]("no " + label + " label")
	}
	return parsed(strings.TrimSpace(s))
}

func (p *listingParser) exact(label string, parse func(string) Field[float64]) Field[float64] {
	return exactField(p, label, parse)
}

func exactField[T any](p *listingParser, label string, parse func(string) Field[T]) Field[T] {
	s, ok := p.rec.Get(label)
	if !ok {
		p.missing(label)
		return skipped[T]("no " + label + " label")
	}
	return check(p, label, s, parse(s))
}

func matched[T any](p *listingParser, re *regexp.Regexp, name string, parse func(string) Field[T]) Field[T] {
	s, ok := p.rec.FirstMatch(re)
	if !ok {
		p.missing(name)
		return skipped[T]("no label matching " + re.String())
	}
	return check(p, name, s, parse(s))
}

// check records the first Fatal field as the listing's ParseError.
func check[T any](p *listingParser, name, text string, f Field[T]) Field[T] {
	if f.Status == Fatal && p.err == nil {
		p.err = &ParseError{ListingID: p.rec.ID(), Field: name, Text: text, Reason: f.Reason}
	}
	return f
}

func (p *listingParser) missing(name string) {
	log.Printf("[warn] %s: %s can not be found in content details", p.rec.ID(), name)
}

func firstLine(f Field[string]) Field[string] {
	if f.Status != Parsed {
		return f
	}
	if i := strings.IndexByte(f.Value, '\n'); i >= 0 {
		f.Value = strings.TrimSpace(f.Value[:i])
	}
	return f
}
