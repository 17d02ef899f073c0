package core

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
)

// ============================================================================
// Coercion Benchmarks
// ============================================================================

// BenchmarkCoerce runs every cell of a typical gear row through its field.
// This is the hot path of the populate step.
func BenchmarkCoerce(b *testing.B) {
	cells := []struct {
		field string
		raw   string
	}{
		{"ID", "sword-01"},
		{"Level", "12"},
		{"Weight", "3,75"},
		{"Active", "TRUE"},
		{"Rarity", "Epic"},
	}
	specs := make([]FieldSpec, len(cells))
	for i, c := range cells {
		specs[i], _ = gearType.Field(c.field)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j, c := range cells {
			Coerce(c.raw, specs[j])
		}
	}
}

// BenchmarkCoerce_Failures measures the Absent path, which logs a warning
// per cell in real imports.
func BenchmarkCoerce_Failures(b *testing.B) {
	level, _ := gearType.Field("Level")
	rarity, _ := gearType.Field("Rarity")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Coerce("300", level)
		Coerce("Mythic", rarity)
	}
}

// ============================================================================
// Splitting Benchmarks
// ============================================================================

// BenchmarkSplitLine covers plain and quoted lines.
func BenchmarkSplitLine(b *testing.B) {
	tests := []struct {
		name string
		line string
	}{
		{"plain", "sword-01,12,3.75,true,Epic"},
		{"quoted", `sword-01,"Sword, long",12,"3,75",true,Epic`},
		{"wide", strings.Repeat("cell,", 49) + "cell"},
	}

	for _, tt := range tests {
		b.Run(tt.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				SplitLine(tt.line, DefaultDelimiter)
			}
		})
	}
}

// ============================================================================
// Row Processing Benchmarks
// ============================================================================

// BenchmarkFilterRows aligns a page of rows, a tenth of them without an id.
func BenchmarkFilterRows(b *testing.B) {
	page := generateGearPage(1000)
	lines := splitLines(page)
	hs := ResolveHeaders(SplitLine(lines[0], DefaultDelimiter), gearType)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		FilterRows(lines[1:], hs, DefaultDelimiter, 2)
	}
}

// BenchmarkReadPageBody_LargeFile benchmarks body hygiene on a BOM-prefixed page.
func BenchmarkReadPageBody_LargeFile(b *testing.B) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(generateGearPage(1000))...)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		readPageBody(bytes.NewReader(data), 0)
	}
}

// ============================================================================
// Page Import Benchmarks
// ============================================================================

// BenchmarkImportPage runs fetch, parse and populate for one list target.
func BenchmarkImportPage(b *testing.B) {
	for _, rows := range []int{100, 1000} {
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			fetcher := newStubFetcher(map[string]string{"Gear": generateGearPage(rows)})
			var dst []gear
			target := ListTarget("Gear", "Gear", gearType, &dst)
			pi := NewPageImporter(fetcher)
			rep := discardReporter{}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := pi.ImportPage(context.Background(), "doc", target, rep); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// ============================================================================
// Parallel Benchmarks
// ============================================================================

// BenchmarkCoerceParallel benchmarks coercion from many goroutines; field
// specs are shared read-only between imports.
func BenchmarkCoerceParallel(b *testing.B) {
	weight, _ := gearType.Field("Weight")

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			Coerce("3,75", weight)
		}
	})
}

// ============================================================================
// Helper Functions
// ============================================================================

type discardReporter struct{}

func (discardReporter) step(RunPhase, string) {}
func (discardReporter) done()                 {}
func (discardReporter) warn(Warning)          {}

// generateGearPage returns a gear page with the given number of data rows.
// Every tenth row has an empty id.
func generateGearPage(rows int) string {
	var sb strings.Builder
	sb.WriteString("ID,Level,Weight,Active,Rarity,Notes\n")
	for i := 0; i < rows; i++ {
		id := fmt.Sprintf("item-%d", i)
		if i%10 == 9 {
			id = ""
		}
		fmt.Fprintf(&sb, "%s,%d,\"%d,5\",true,Rare,\"note, %d\"\n", id, i%100, i%7, i)
	}
	return sb.String()
}
