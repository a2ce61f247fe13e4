package attrs

import (
	"errors"
	"testing"

	"domus/geo"
	"domus/models"
)

func detailRecord(title string, kvs ...string) *models.DetailRecord {
	rec := &models.DetailRecord{
		Search: models.ListingSummary{URL: "/ms/chuko/nc_76543210/", Title: title},
	}
	gps := geo.NewPoint(33.5902, 130.3990)
	rec.GPS = &gps
	for i := 0; i+1 < len(kvs); i += 2 {
		rec.ContentDetails = append(rec.ContentDetails, models.KV{Type: kvs[i], Content: kvs[i+1]})
	}
	return rec
}

func TestParseListing(t *testing.T) {
	rec := detailRecord("ペット可 ライオンズマンション天神",
		"物件名", "ライオンズマンション天神",
		"価格", "3500万円",
		"専有面積", "71.23m2（壁芯）",
		"その他面積", "バルコニー面積：10.5m2",
		"間取り", "3LDK+S（納戸）",
		"管理費", "1万5000円／月（委託(通勤)）",
		"修繕積立金", "8200円／月",
		"所在階/構造・階建", "5階/RC14階建",
		"完成時期（築年月）", "2015年4月",
		"住所", "福岡県福岡市中央区天神２\n［■周辺環境］",
		"向き", "南東",
		"価格", "9999万円",
	)

	a, err := Parse(rec)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if v, _ := a.Price.Get(); v != 3500 {
		t.Fatalf("first 価格 should win, got %v", v)
	}
	if v, _ := a.Floor.Get(); v != 5 {
		t.Fatalf("floor from 所在階 prefix label, got %v", v)
	}
	if v, _ := a.TotalFloors.Get(); v != 14 {
		t.Fatalf("expected 14 floors, got %v", v)
	}
	if v, _ := a.BuildType.Get(); v != BuildTypeRC {
		t.Fatalf("expected RC, got %v", v)
	}
	if v, _ := a.Address.Get(); v != "福岡県福岡市中央区天神２" {
		t.Fatalf("expected first address line, got %q", v)
	}
	if a.RepairFund.Status != Skipped || a.OtherCosts.Status != Skipped {
		t.Fatal("missing fee labels should be skipped")
	}
	if got := a.MonthlyFeeTotal(); got != 23200 {
		t.Fatalf("expected fee total 23200, got %v", got)
	}
	if !a.Pet {
		t.Fatal("expected pet listing")
	}

	row := models.NewFeatureRecord(rec.ID())
	a.Apply(row)
	if row.Cell("completion_date") != "2015-04-01" {
		t.Fatalf("unexpected completion date %q", row.Cell("completion_date"))
	}
	if row.Cell("layout_main") != "3LDK" || row.Cell("layout_storage_room") != "1" {
		t.Fatalf("unexpected layout %q / %q", row.Cell("layout_main"), row.Cell("layout_storage_room"))
	}
	if row.Has("monthly_fee_repair_fund") {
		t.Fatal("skipped fee should not produce a column")
	}
	if row.Cell("monthly_fee_total") != "23200" {
		t.Fatalf("unexpected fee total cell %q", row.Cell("monthly_fee_total"))
	}
	if row.Cell("common_area") != "10.5" {
		t.Fatalf("unexpected common area %q", row.Cell("common_area"))
	}
}

func TestParseListingExactFloorLabel(t *testing.T) {
	rec := detailRecord("物件",
		"所在階/構造・階建", "9階/SRC20階建",
		"所在階", "3階",
	)
	a, err := Parse(rec)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if v, _ := a.Floor.Get(); v != 3 {
		t.Fatalf("exact 所在階 label should win, got %d", v)
	}
}

func TestParseListingSkipsMissingLabels(t *testing.T) {
	a, err := Parse(detailRecord("物件", "物件名", "名前だけの物件"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if a.ExclusiveArea.Status != Skipped || a.CompletionDate.Status != Skipped || a.BuildType.Status != Skipped {
		t.Fatal("absent labels should be skipped")
	}

	row := models.NewFeatureRecord("x")
	a.Apply(row)
	if row.Has("exclusive_area") || row.Has("build_type") {
		t.Fatal("skipped fields must not produce columns")
	}
}

func TestParseListingFatalArea(t *testing.T) {
	rec := detailRecord("物件",
		"価格", "3500万円",
		"専有面積", "未定",
		"完成時期（築年月）", "不明",
	)
	_, err := Parse(rec)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if pe.Field != LabelExclusiveArea || pe.ListingID != "/ms/chuko/nc_76543210/" {
		t.Fatalf("expected first fatal field 専有面積 for the listing, got %+v", pe)
	}
}
