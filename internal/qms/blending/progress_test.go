package blending

import (
	"math"
	"testing"

	"github.com/bitfantasy/nimo-qms/internal/qms/entity"
)

func alloc(powder string, weight, tol float64) Allocation {
	return Allocation{
		PowderName:       powder,
		Weight:           weight,
		MinWeight:        weight * (1 - tol/100),
		MaxWeight:        weight * (1 + tol/100),
		TolerancePercent: tol,
	}
}

// TestJudgeBoundaryInclusive 允差窗口为闭区间：恰好落在边界判合格
func TestJudgeBoundaryInclusive(t *testing.T) {
	a := alloc("纯铁粉", 1000, 2) // [980, 1020]

	for _, w := range []float64{980, 1020} {
		j := Judge(a, []LotEntry{{LotNumber: "A100", Weight: w}})
		if !j.Passed {
			t.Fatalf("weight %v on boundary should pass: %s", w, j.Message)
		}
	}

	for _, w := range []float64{979.99, 1020.01} {
		j := Judge(a, []LotEntry{{LotNumber: "A100", Weight: w}})
		if j.Passed {
			t.Fatalf("weight %v outside window should fail", w)
		}
	}
}

// TestJudgeLotAggregation 多LOT合计判定：600+420=1020 落上边界合格；
// 去掉一个LOT后重判即不合格（判定只看当前LOT集合）
func TestJudgeLotAggregation(t *testing.T) {
	a := alloc("纯铁粉", 1000, 2) // [980, 1020]

	lots := []LotEntry{
		{LotNumber: "A100", Weight: 600},
		{LotNumber: "A101", Weight: 420},
	}
	j := Judge(a, lots)
	if !j.Passed {
		t.Fatalf("sum 1020 should pass: %s", j.Message)
	}
	if math.Abs(j.Sum-1020) > 1e-9 {
		t.Fatalf("expected sum 1020, got %v", j.Sum)
	}

	// 去掉A101，同一判定函数给出不同结论——无隐藏状态
	j2 := Judge(a, lots[:1])
	if j2.Passed {
		t.Fatal("sum 600 should fail after removing lot")
	}
}

// TestJudgeDeviationMessage 不合格时报告带符号超窗量与具体边界
func TestJudgeDeviationMessage(t *testing.T) {
	a := alloc("铜粉", 500, 2) // [490, 510]

	j := Judge(a, []LotEntry{{LotNumber: "C200", Weight: 480}})
	if j.Passed {
		t.Fatal("expected fail")
	}
	if j.Message == "" {
		t.Fatal("expected concrete failure message")
	}

	tolErr := &ToleranceError{PowderName: "铜粉", Sum: 480, MinWeight: 490, MaxWeight: 510}
	if d := tolErr.Deviation(); math.Abs(d-(-10)) > 1e-9 {
		t.Fatalf("expected deviation -10, got %v", d)
	}

	tolErr.Sum = 515
	if d := tolErr.Deviation(); math.Abs(d-5) > 1e-9 {
		t.Fatalf("expected deviation +5, got %v", d)
	}
}

// TestJudgeIndependentLines 各行判定互不影响：同一批内并发判定不共享累加器
func TestJudgeIndependentLines(t *testing.T) {
	a1 := alloc("纯铁粉", 1000, 2)
	a2 := alloc("铜粉", 500, 2)

	j1 := Judge(a1, []LotEntry{{LotNumber: "A100", Weight: 1000}})
	j2 := Judge(a2, []LotEntry{{LotNumber: "C200", Weight: 700}})

	if !j1.Passed || j2.Passed {
		t.Fatalf("lines must judge independently: j1=%v j2=%v", j1.Passed, j2.Passed)
	}
	if math.Abs(j1.Sum-1000) > 1e-9 || math.Abs(j2.Sum-700) > 1e-9 {
		t.Fatal("sums leaked across lines")
	}
}

func TestComputeProgress(t *testing.T) {
	lines := []entity.RecipeLine{
		{PowderName: "纯铁粉"},
		{PowderName: "铜粉"},
		{PowderName: "石墨粉"},
	}
	inputs := []entity.MaterialInput{
		{PowderName: "纯铁粉"},
		{PowderName: "石墨粉"},
	}

	p := ComputeProgress(lines, inputs)
	if p.PassedLines != 2 || p.TotalLines != 3 {
		t.Fatalf("expected 2/3, got %d/%d", p.PassedLines, p.TotalLines)
	}
	if math.Abs(p.Percent-200.0/3) > 1e-9 {
		t.Fatalf("expected %.4f%%, got %v", 200.0/3, p.Percent)
	}
}

// TestTonBoxes 完成量向下取整、需求量向上取整
func TestTonBoxes(t *testing.T) {
	cases := []struct {
		completed, required float64
		done, total         int
	}{
		{1999, 5000, 1, 5},
		{2000, 5000, 2, 5},
		{0, 4300, 0, 5},
		{4999, 4300, 4, 5},
		{6000, 5000, 5, 5}, // 封顶
	}
	for _, c := range cases {
		done, total := TonBoxes(c.completed, c.required)
		if done != c.done || total != c.total {
			t.Fatalf("TonBoxes(%v, %v): expected %d/%d, got %d/%d",
				c.completed, c.required, c.done, c.total, done, total)
		}
	}
}

func TestLineStatus(t *testing.T) {
	inputs := []entity.MaterialInput{{PowderName: "纯铁粉"}}

	if s := LineStatus("纯铁粉", inputs); s != LineStateJudgedPass {
		t.Fatalf("expected judged_pass, got %s", s)
	}
	if s := LineStatus("铜粉", inputs); s != LineStatePending {
		t.Fatalf("expected pending, got %s", s)
	}
}
