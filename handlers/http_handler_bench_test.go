package handlers

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/giygas/medcompare-api/entities"
)

// ============================================================================
// BENCHMARKS
// ============================================================================

// largeLookup builds a lookup with n alternatives, every tenth one duplicated
func largeLookup(n int) *entities.LookupResponse {
	orig := med("0", "Dolo 650", "₹100")
	alts := make([]entities.Medication, 0, n+n/10)
	for i := 1; i <= n; i++ {
		alts = append(alts, med(fmt.Sprintf("%d", i), fmt.Sprintf("Alt %d", i), fmt.Sprintf("₹%d.50", 50+i%80)))
		if i%10 == 0 {
			alts = append(alts, med(fmt.Sprintf("%d", i), fmt.Sprintf("Alt %d", i), "₹1"))
		}
	}
	return &entities.LookupResponse{OriginalMedicine: &orig, AlternativeMedicines: alts}
}

// BenchmarkCompare benchmarks lookup ingestion and curation of 200 alternatives
func BenchmarkCompare(b *testing.B) {
	env := newTestEnv()
	env.search.responses["dolo 650"] = largeLookup(200)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rr := httptest.NewRecorder()
		env.handler.Compare(rr, httptest.NewRequest("GET", "/api/compare?name=Dolo+650", nil))
	}
}

// BenchmarkRecommendation benchmarks percentage classification
func BenchmarkRecommendation(b *testing.B) {
	env := newTestEnv()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rr := httptest.NewRecorder()
		env.handler.Recommendation(rr, httptest.NewRequest("GET", "/api/recommendation?percentage=62.5", nil))
	}
}
