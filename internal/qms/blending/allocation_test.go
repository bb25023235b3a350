package blending

import (
	"math"
	"math/rand"
	"testing"

	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
)

func line(powder string, ratio, tol float64, isMain bool) entity.RecipeLine {
	return entity.RecipeLine{
		ProductName:      "测试产品",
		PowderName:       powder,
		Ratio:            ratio,
		TolerancePercent: tol,
		IsMain:           isMain,
	}
}

// TestAllocateProportional 无主粉时按配比纯比例拆分
func TestAllocateProportional(t *testing.T) {
	lines := []entity.RecipeLine{
		line("纯铁粉", 60, 2, false),
		line("铜粉", 30, 2, false),
		line("石墨粉", 10, 2, false),
	}

	ws, err := Allocate(lines, 5000, nil)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	want := []float64{3000, 1500, 500}
	for i, a := range ws.Allocations {
		if math.Abs(a.Weight-want[i]) > 1e-9 {
			t.Fatalf("line %d: expected weight %v, got %v", i, want[i], a.Weight)
		}
		if math.Abs(a.MinWeight-want[i]*0.98) > 1e-9 || math.Abs(a.MaxWeight-want[i]*1.02) > 1e-9 {
			t.Fatalf("line %d: wrong tolerance window [%v, %v]", i, a.MinWeight, a.MaxWeight)
		}
	}
	if math.Abs(ws.ActualTotalWeight-5000) > 1e-9 {
		t.Fatalf("expected actual total 5000, got %v", ws.ActualTotalWeight)
	}
}

// TestAllocateSingleMain 单主粉：主粉取选重，辅粉按反推总重折算。
// 对主粉配比R、选重W，每条辅粉重量必须精确等于 (W/(R/100))*(subRatio/100)。
func TestAllocateSingleMain(t *testing.T) {
	lines := []entity.RecipeLine{
		line("纯铁粉", 70, 0, true),
		line("镍粉", 20, 0, false),
		line("钼粉", 10, 0, false),
	}

	ws, err := Allocate(lines, 2500, map[string]float64{"纯铁粉": 2000})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	wantTotal := 2000 / 0.70
	if math.Abs(ws.ActualTotalWeight-wantTotal) > 1e-9 {
		t.Fatalf("expected actual total %v, got %v", wantTotal, ws.ActualTotalWeight)
	}

	main, _ := ws.Find("纯铁粉")
	if main.Weight != 2000 {
		t.Fatalf("expected main weight 2000, got %v", main.Weight)
	}
	if main.PowderCategory != entity.PowderCategoryMain {
		t.Fatalf("expected category main, got %s", main.PowderCategory)
	}

	for _, sub := range []struct {
		powder string
		ratio  float64
	}{{"镍粉", 20}, {"钼粉", 10}} {
		a, ok := ws.Find(sub.powder)
		if !ok {
			t.Fatalf("missing allocation for %s", sub.powder)
		}
		want := wantTotal * sub.ratio / 100
		if math.Abs(a.Weight-want) > 1e-9 {
			t.Fatalf("%s: expected %v, got %v", sub.powder, want, a.Weight)
		}
	}
}

// TestAllocateEndToEnd 规格场景：P1 70%主粉选重2000kg，P2 30%，默认5%允差
func TestAllocateEndToEnd(t *testing.T) {
	lines := []entity.RecipeLine{
		line("P1", 70, 0, true),
		line("P2", 30, 0, false),
	}

	ws, err := Allocate(lines, 2000, map[string]float64{"P1": 2000})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	p1, _ := ws.Find("P1")
	if p1.MinWeight != 1900 || p1.MaxWeight != 2100 {
		t.Fatalf("P1 window: expected [1900, 2100], got [%v, %v]", p1.MinWeight, p1.MaxWeight)
	}

	p2, _ := ws.Find("P2")
	wantP2 := 2000 / 0.70 * 0.30
	if math.Abs(p2.Weight-wantP2) > 1e-9 {
		t.Fatalf("P2 weight: expected %v, got %v", wantP2, p2.Weight)
	}
	// 展示层两位小数
	if Round2(p2.Weight) != 857.14 {
		t.Fatalf("P2 display weight: expected 857.14, got %v", Round2(p2.Weight))
	}
	if Round2(p2.MinWeight) != 814.29 || Round2(p2.MaxWeight) != 900.00 {
		t.Fatalf("P2 window: expected [814.29, 900.00], got [%v, %v]",
			Round2(p2.MinWeight), Round2(p2.MaxWeight))
	}
}

// TestAllocateMultiMain 双主粉各自选整吨档位，总重由主粉反推并可偏离名义目标
func TestAllocateMultiMain(t *testing.T) {
	lines := []entity.RecipeLine{
		line("纯铁粉", 50, 2, true),
		line("铜粉", 30, 2, true),
		line("石墨粉", 20, 2, false),
	}

	// 名义目标6000kg，但主粉按整吨选重 3000+2000=5000
	ws, err := Allocate(lines, 6000, map[string]float64{"纯铁粉": 3000, "铜粉": 2000})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	// 反推总重 = 5000 / 0.80 = 6250，与名义6000的偏离是主粉整吨档位导致的
	wantTotal := 5000 / 0.80
	if math.Abs(ws.ActualTotalWeight-wantTotal) > 1e-9 {
		t.Fatalf("expected actual total %v, got %v", wantTotal, ws.ActualTotalWeight)
	}

	graphite, _ := ws.Find("石墨粉")
	if math.Abs(graphite.Weight-wantTotal*0.20) > 1e-9 {
		t.Fatalf("expected graphite %v, got %v", wantTotal*0.20, graphite.Weight)
	}
}

// TestAllocateMultiMainDefaultSplit 多主粉未逐一选重时按主粉配比份额拆分名义目标
func TestAllocateMultiMainDefaultSplit(t *testing.T) {
	lines := []entity.RecipeLine{
		line("纯铁粉", 60, 2, true),
		line("铜粉", 20, 2, true),
		line("石墨粉", 20, 2, false),
	}

	ws, err := Allocate(lines, 4000, nil)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	iron, _ := ws.Find("纯铁粉")
	copper, _ := ws.Find("铜粉")
	if math.Abs(iron.Weight-4000*60/80) > 1e-9 {
		t.Fatalf("expected iron %v, got %v", 4000*60.0/80, iron.Weight)
	}
	if math.Abs(copper.Weight-4000*20/80) > 1e-9 {
		t.Fatalf("expected copper %v, got %v", 4000*20.0/80, copper.Weight)
	}
}

// TestAllocateZeroMainRatio 主粉配比和为0时退回纯比例拆分，不得除零
func TestAllocateZeroMainRatio(t *testing.T) {
	lines := []entity.RecipeLine{
		line("纯铁粉", 0, 2, true),
		line("铜粉", 100, 2, false),
	}

	ws, err := Allocate(lines, 3000, map[string]float64{"纯铁粉": 1000})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	copper, _ := ws.Find("铜粉")
	if math.Abs(copper.Weight-3000) > 1e-9 {
		t.Fatalf("expected copper 3000, got %v", copper.Weight)
	}
}

// TestAllocateInvalidRatioSum 配比之和偏离100超过0.1即拒绝开工
func TestAllocateInvalidRatioSum(t *testing.T) {
	lines := []entity.RecipeLine{
		line("纯铁粉", 60, 2, false),
		line("铜粉", 30, 2, false),
	}

	_, err := Allocate(lines, 5000, nil)
	if err == nil {
		t.Fatal("expected recipe error for ratio sum 90")
	}
	if _, ok := err.(*RecipeError); !ok {
		t.Fatalf("expected *RecipeError, got %T", err)
	}
}

// TestValidateRecipeRandomRatios 随机配比集合的属性测试：
// 仅当 |sum-100| <= 0.1 时通过校验
func TestValidateRecipeRandomRatios(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := 2 + rng.Intn(4)
		lines := make([]entity.RecipeLine, n)
		var sum float64
		for j := 0; j < n; j++ {
			r := math.Round(rng.Float64()*5000) / 100 // 0-50, 两位小数
			lines[j] = line("粉"+string(rune('A'+j)), r, 2, false)
			sum += r
		}

		err := entity.ValidateRecipe(lines)
		within := math.Abs(sum-100.0) <= entity.RatioSumTolerance
		if within && err != nil {
			t.Fatalf("sum=%.2f should validate, got %v", sum, err)
		}
		if !within && err == nil {
			t.Fatalf("sum=%.2f should fail validation", sum)
		}
	}
}

// TestAllocateDefaultTolerance 配方行允差缺省时按5%取窗
func TestAllocateDefaultTolerance(t *testing.T) {
	lines := []entity.RecipeLine{
		line("纯铁粉", 100, 0, false),
	}

	ws, err := Allocate(lines, 1000, nil)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	a := ws.Allocations[0]
	if a.TolerancePercent != entity.DefaultTolerancePercent {
		t.Fatalf("expected default tolerance 5, got %v", a.TolerancePercent)
	}
	if a.MinWeight != 950 || a.MaxWeight != 1050 {
		t.Fatalf("expected window [950, 1050], got [%v, %v]", a.MinWeight, a.MaxWeight)
	}
}

// TestAllocateResolvedMainReproducible 未选重时主粉默认取名义总重；
// 用反推总重+解析后的主粉选重重算，必须得到完全相同的分配表
func TestAllocateResolvedMainReproducible(t *testing.T) {
	lines := []entity.RecipeLine{
		line("纯铁粉", 70, 0, true),
		line("铜粉", 30, 0, false),
	}

	first, err := Allocate(lines, 2000, nil)
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	main, _ := first.Find("纯铁粉")
	if main.Weight != 2000 {
		t.Fatalf("expected default main weight 2000, got %v", main.Weight)
	}
	if math.Abs(first.ActualTotalWeight-2000/0.70) > 1e-9 {
		t.Fatalf("expected actual total %v, got %v", 2000/0.70, first.ActualTotalWeight)
	}

	resolved := make(map[string]float64)
	for _, a := range first.Allocations {
		if a.PowderCategory == entity.PowderCategoryMain {
			resolved[a.PowderName] = a.Weight
		}
	}

	second, err := Allocate(lines, first.ActualTotalWeight, resolved)
	if err != nil {
		t.Fatalf("re-Allocate failed: %v", err)
	}
	if math.Abs(second.ActualTotalWeight-first.ActualTotalWeight) > 1e-9 {
		t.Fatalf("actual total drifted: %v vs %v", second.ActualTotalWeight, first.ActualTotalWeight)
	}
	for _, a := range first.Allocations {
		b, ok := second.Find(a.PowderName)
		if !ok {
			t.Fatalf("powder %s missing after re-allocation", a.PowderName)
		}
		if math.Abs(a.Weight-b.Weight) > 1e-9 ||
			math.Abs(a.MinWeight-b.MinWeight) > 1e-9 ||
			math.Abs(a.MaxWeight-b.MaxWeight) > 1e-9 {
			t.Fatalf("powder %s drifted: %+v vs %+v", a.PowderName, a, b)
		}
	}
}
