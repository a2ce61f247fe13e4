package attrs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

const number = `([+-]?(?:[0-9]*[.])?[0-9]+)`

var (
	priceRegex      = regexp.MustCompile(`(?:(\d+)億)?` + number + `万円`)
	priceOkuRegex   = regexp.MustCompile(`(\d+)億円`)
	areaRegex       = regexp.MustCompile(number + `(?:m2|㎡)`)
	feeRegex        = regexp.MustCompile(`(?:(\d+)万)?(\d+)円/月`)
	floorRegex      = regexp.MustCompile(`(\d+)階`)
	totalFloorRegex = regexp.MustCompile(`(\d+)階建`)
	dateRegex       = regexp.MustCompile(`(\d{4})年(\d+)月`)
	layoutRegex     = regexp.MustCompile(`\d[LDK]+`)
	storageRegex    = regexp.MustCompile(`\+(\d?)S`)
)

// Normalize folds full-width digits, letters and punctuation to their
// narrow forms so "３５００万円" and "1万5000円／月" match the ASCII patterns.
func Normalize(text string) string {
	return strings.TrimSpace(width.Fold.String(text))
}

// ParsePrice reads a price in units of 10,000 yen. "1億2000万円" is 12000.
func ParsePrice(text string) Field[float64] {
	s := Normalize(text)
	if m := priceRegex.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return fatal[float64]("bad number %q", m[2])
		}
		if m[1] != "" {
			oku, _ := strconv.Atoi(m[1])
			v += float64(oku) * 10000
		}
		return parsed(v)
	}
	if m := priceOkuRegex.FindStringSubmatch(s); m != nil {
		oku, _ := strconv.Atoi(m[1])
		return parsed(float64(oku) * 10000)
	}
	return fatal[float64]("no 万円 amount")
}

// ParseArea reads the first area figure in square metres.
func ParseArea(text string) Field[float64] {
	m := areaRegex.FindStringSubmatch(Normalize(text))
	if m == nil {
		return fatal[float64]("no m2 amount")
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return fatal[float64]("bad number %q", m[1])
	}
	return parsed(v)
}

// SumAreas adds every area figure in text; a balcony and a terrace listed
// together count as one common area.
func SumAreas(text string) Field[float64] {
	total := 0.0
	for _, m := range areaRegex.FindAllStringSubmatch(Normalize(text), -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return fatal[float64]("bad number %q", m[1])
		}
		total += v
	}
	return parsed(total)
}

// ParseMonthlyFee sums every "<n>万<n>円/月" amount in text, in yen.
func ParseMonthlyFee(text string) Field[float64] {
	total := 0.0
	for _, m := range feeRegex.FindAllStringSubmatch(Normalize(text), -1) {
		yen, _ := strconv.ParseFloat(m[2], 64)
		total += yen
		if m[1] != "" {
			man, _ := strconv.ParseFloat(m[1], 64)
			total += 10000 * man
		}
	}
	return parsed(total)
}

func ParseFloor(text string) Field[int] {
	return firstInt(floorRegex, text, "階")
}

func ParseTotalFloors(text string) Field[int] {
	return firstInt(totalFloorRegex, text, "階建")
}

func firstInt(re *regexp.Regexp, text, unit string) Field[int] {
	m := re.FindStringSubmatch(Normalize(text))
	if m == nil {
		return fatal[int]("no %s figure", unit)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return fatal[int]("bad number %q", m[1])
	}
	return parsed(n)
}

const (
	BuildTypeWood    = "wood"
	BuildTypeRC      = "RC"
	BuildTypeUnknown = "unknown"
)

// ParseBuildType classifies a structure description. 木造 is checked first,
// so a mixed "木造一部RC" counts as wood.
func ParseBuildType(text string) string {
	s := Normalize(text)
	switch {
	case strings.Contains(s, "木造"):
		return BuildTypeWood
	case strings.Contains(s, "RC"):
		return BuildTypeRC
	default:
		return BuildTypeUnknown
	}
}

// ParseCompletionDate turns "2015年4月" into "2015-04-01".
func ParseCompletionDate(text string) Field[string] {
	m := dateRegex.FindStringSubmatch(Normalize(text))
	if m == nil {
		return fatal[string]("no 年月 date")
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return fatal[string]("month %d out of range", month)
	}
	return parsed(fmt.Sprintf("%04d-%02d-01", year, month))
}

type Layout struct {
	Main         string
	StorageRooms int
}

// ParseLayout reads a floor plan code. "+S" without a digit is one storage
// room; no suffix is none.
func ParseLayout(text string) Field[Layout] {
	s := Normalize(text)
	main := layoutRegex.FindString(s)
	if main == "" {
		return fatal[Layout]("no layout code")
	}
	layout := Layout{Main: main}
	if m := storageRegex.FindStringSubmatch(s); m != nil {
		layout.StorageRooms = 1
		if m[1] != "" {
			layout.StorageRooms, _ = strconv.Atoi(m[1])
		}
	}
	return parsed(layout)
}

// IsPetListing reports whether the listing title leads with ペット.
func IsPetListing(title string) bool {
	return strings.HasPrefix(strings.TrimSpace(title), "ペット")
}
