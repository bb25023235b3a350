package handler

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-qms/internal/middleware"
	"github.com/bitfantasy/nimo-qms/internal/qms/blending"
	"github.com/bitfantasy/nimo-qms/internal/qms/repository"
	"github.com/bitfantasy/nimo-qms/internal/qms/service"
	"github.com/bitfantasy/nimo-qms/internal/qms/testutil"
)

func setupBlendingTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	repos := repository.NewRepositories(db)
	validator := blending.NewValidator(repos.Inspection)

	blendingSvc := service.NewBlendingService(repos.BlendingWork, repos.Recipe, repos.MaterialInput, validator)
	blendingSvc.SetActivityLogRepo(repos.ActivityLog)
	handler := NewBlendingHandler(blendingSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1/qms")
	api.POST("/blending-works", handler.StartWork)
	api.GET("/blending-works/:id", handler.GetWork)
	api.POST("/blending-works/:id/judge", handler.JudgeMaterialInput)
	api.POST("/blending-works/:id/complete", handler.CompleteWork)
	api.DELETE("/blending-works/:id", middleware.RequireRole("qms_admin"), handler.DeleteWork)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func startTestWork(t *testing.T, env *testutil.TestEnv, token, workOrder string) (workID, batchLot string) {
	t.Helper()
	body := map[string]interface{}{
		"work_order":          workOrder,
		"product_name":        "合金产品A",
		"target_total_weight": 2000,
		"main_powder_weights": map[string]float64{"纯铁粉": 1400},
	}
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/qms/blending-works", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("StartWork failed: status %d body %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	work := data["work"].(map[string]interface{})
	return work["id"].(string), work["batch_lot"].(string)
}

// TestBlendingFullFlow 完整走一遍：开工 → 逐行判定 → 完成 → 终态锁定
func TestBlendingFullFlow(t *testing.T) {
	env := setupBlendingTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedRecipe(t, env.DB, "合金产品A")
	testutil.SeedInspection(t, env.DB, "纯铁粉", "A100", "PASS")
	testutil.SeedInspection(t, env.DB, "铜粉", "C200", "PASS")

	workID, batchLot := startTestWork(t, env, token, "WO-2026-001")
	if !strings.HasPrefix(batchLot, "BATCH-") {
		t.Fatalf("unexpected batch lot format: %s", batchLot)
	}

	// 主粉判定: 1400kg 在 [1330, 1470]
	judge := map[string]interface{}{
		"powder_name": "纯铁粉",
		"lots":        []map[string]interface{}{{"lot_number": "A100", "weight": 1400}},
	}
	w := testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/judge", workID), judge, token)
	if w.Code != http.StatusOK {
		t.Fatalf("judge failed: status %d body %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	judgment := data["judgment"].(map[string]interface{})
	if judgment["passed"] != true {
		t.Fatalf("expected pass, got %v", judgment)
	}
	if data["input"] == nil {
		t.Fatal("expected persisted material input on pass")
	}

	// 同一粉末重复判定被拒：投料记录不可变更
	w = testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/judge", workID), judge, token)
	if w.Code == http.StatusOK {
		t.Fatal("expected rejection for re-judging a passed line")
	}

	// 未全部合格时不能完成
	w = testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/complete", workID), nil, token)
	if w.Code == http.StatusOK {
		t.Fatal("expected completion to fail with pending lines")
	}

	// 辅粉判定: 600kg 在 [570, 630]
	judge2 := map[string]interface{}{
		"powder_name": "铜粉",
		"lots":        []map[string]interface{}{{"lot_number": "C200", "weight": 600}},
	}
	w = testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/judge", workID), judge2, token)
	if w.Code != http.StatusOK {
		t.Fatalf("judge copper failed: status %d body %s", w.Code, w.Body.String())
	}

	// 完成作业
	w = testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/complete", workID), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("complete failed: status %d body %s", w.Code, w.Body.String())
	}

	// 终态后任何判定都是409
	w = testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/judge", workID), judge2, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 after completion, got %d", w.Code)
	}
}

// TestJudgeRejectedLot 检验不合格LOT阻塞整行判定
func TestJudgeRejectedLot(t *testing.T) {
	env := setupBlendingTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedRecipe(t, env.DB, "合金产品A")
	testutil.SeedInspection(t, env.DB, "纯铁粉", "A100", "PASS")
	testutil.SeedInspection(t, env.DB, "纯铁粉", "A101", "FAIL")

	workID, _ := startTestWork(t, env, token, "WO-2026-002")

	judge := map[string]interface{}{
		"powder_name": "纯铁粉",
		"lots": []map[string]interface{}{
			{"lot_number": "A100", "weight": 800},
			{"lot_number": "A101", "weight": 600},
		},
	}
	w := testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/judge", workID), judge, token)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for rejected lot, got %d body %s", w.Code, w.Body.String())
	}
}

// TestJudgeWrongMaterial 异种粉末：LOT属于别的粉末时422并带提示
func TestJudgeWrongMaterial(t *testing.T) {
	env := setupBlendingTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedRecipe(t, env.DB, "合金产品A")
	testutil.SeedInspection(t, env.DB, "铜粉", "C200", "PASS")

	workID, _ := startTestWork(t, env, token, "WO-2026-003")

	judge := map[string]interface{}{
		"powder_name": "纯铁粉",
		"lots":        []map[string]interface{}{{"lot_number": "C200", "weight": 1400}},
	}
	w := testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/judge", workID), judge, token)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for wrong material, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if msg, _ := resp["message"].(string); !strings.Contains(msg, "异种粉末") {
		t.Fatalf("expected wrong material hint, got %q", msg)
	}
}

// TestJudgeOutOfTolerance 超窗只返回不合格结论，不落库
func TestJudgeOutOfTolerance(t *testing.T) {
	env := setupBlendingTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedRecipe(t, env.DB, "合金产品A")
	testutil.SeedInspection(t, env.DB, "纯铁粉", "A100", "PASS")

	workID, _ := startTestWork(t, env, token, "WO-2026-004")

	// 窗口 [1330, 1470]，1000kg 明显不足
	judge := map[string]interface{}{
		"powder_name": "纯铁粉",
		"lots":        []map[string]interface{}{{"lot_number": "A100", "weight": 1000}},
	}
	w := testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/judge", workID), judge, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with failed judgment, got %d body %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	judgment := data["judgment"].(map[string]interface{})
	if judgment["passed"] != false {
		t.Fatalf("expected failed judgment, got %v", judgment)
	}
	if data["input"] != nil {
		t.Fatal("failed judgment must not persist a material input")
	}

	// 调整重量后重判即合格
	judge["lots"] = []map[string]interface{}{{"lot_number": "A100", "weight": 1400}}
	w = testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/judge", workID), judge, token)
	if w.Code != http.StatusOK {
		t.Fatalf("re-judge failed: %d", w.Code)
	}
	resp = testutil.ParseResponse(w)
	data = resp["data"].(map[string]interface{})
	if data["judgment"].(map[string]interface{})["passed"] != true {
		t.Fatal("expected pass after weight correction")
	}
}

// TestDeleteWorkRequiresAdmin 删除作业需要qms_admin角色
func TestDeleteWorkRequiresAdmin(t *testing.T) {
	env := setupBlendingTest(t)
	admin := testutil.DefaultTestToken()
	operator := testutil.OperatorTestToken()

	testutil.SeedRecipe(t, env.DB, "合金产品A")
	workID, _ := startTestWork(t, env, admin, "WO-2026-005")

	w := testutil.DoRequest(env.Router, "DELETE",
		fmt.Sprintf("/api/v1/qms/blending-works/%s", workID), nil, operator)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator delete, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, "DELETE",
		fmt.Sprintf("/api/v1/qms/blending-works/%s", workID), nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("expected admin delete to succeed, got %d body %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET",
		fmt.Sprintf("/api/v1/qms/blending-works/%s", workID), nil, admin)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

// TestStartWorkInvalidRecipe 配比和不为100的产品拒绝开工
func TestStartWorkInvalidRecipe(t *testing.T) {
	env := setupBlendingTest(t)
	token := testutil.DefaultTestToken()

	// 60+30=90，配方不合法
	lines := testutil.SeedRecipe(t, env.DB, "坏产品")
	if err := env.DB.Model(&lines[0]).Update("ratio", 60).Error; err != nil {
		t.Fatalf("failed to break recipe: %v", err)
	}

	body := map[string]interface{}{
		"work_order":          "WO-2026-006",
		"product_name":        "坏产品",
		"target_total_weight": 2000,
	}
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/qms/blending-works", body, token)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid recipe, got %d body %s", w.Code, w.Body.String())
	}
}

// TestStartWorkDefaultMainWeight 不传主粉选重时主粉默认取名义总重，
// 且之后读到的分配表必须与开工时返回的完全一致
func TestStartWorkDefaultMainWeight(t *testing.T) {
	env := setupBlendingTest(t)
	token := testutil.DefaultTestToken()

	testutil.SeedRecipe(t, env.DB, "合金产品A")
	testutil.SeedInspection(t, env.DB, "纯铁粉", "A100", "PASS")
	testutil.SeedInspection(t, env.DB, "铜粉", "C200", "PASS")

	body := map[string]interface{}{
		"work_order":          "WO-2026-007",
		"product_name":        "合金产品A",
		"target_total_weight": 2000,
	}
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/qms/blending-works", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("StartWork failed: status %d body %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	workID := data["work"].(map[string]interface{})["id"].(string)

	// 主粉默认按名义总重2000，窗口 [1900, 2100]
	allocs := data["worksheet"].(map[string]interface{})["allocations"].([]interface{})
	startWeights := map[string]float64{}
	for _, raw := range allocs {
		a := raw.(map[string]interface{})
		startWeights[a["powder_name"].(string)] = a["calculated_weight"].(float64)
	}
	if math.Abs(startWeights["纯铁粉"]-2000) > 0.01 {
		t.Fatalf("expected default main weight 2000, got %v", startWeights["纯铁粉"])
	}

	// 重新读详情，分配表必须与开工时一致，不随反推总重漂移
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/qms/blending-works/"+workID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("GetWork failed: %d", w.Code)
	}
	resp = testutil.ParseResponse(w)
	lines := resp["data"].(map[string]interface{})["lines"].([]interface{})
	for _, raw := range lines {
		a := raw.(map[string]interface{})["allocation"].(map[string]interface{})
		powder := a["powder_name"].(string)
		if math.Abs(a["calculated_weight"].(float64)-startWeights[powder]) > 0.01 {
			t.Fatalf("allocation for %s drifted: start %v, detail %v",
				powder, startWeights[powder], a["calculated_weight"])
		}
	}

	// 按开工时给出的目标称重，两行都应合格
	for powder, lot := range map[string]string{"纯铁粉": "A100", "铜粉": "C200"} {
		judge := map[string]interface{}{
			"powder_name": powder,
			"lots":        []map[string]interface{}{{"lot_number": lot, "weight": startWeights[powder]}},
		}
		w = testutil.DoRequest(env.Router, "POST",
			fmt.Sprintf("/api/v1/qms/blending-works/%s/judge", workID), judge, token)
		if w.Code != http.StatusOK {
			t.Fatalf("judge %s failed: %d body %s", powder, w.Code, w.Body.String())
		}
		resp = testutil.ParseResponse(w)
		judgment := resp["data"].(map[string]interface{})["judgment"].(map[string]interface{})
		if judgment["passed"] != true {
			t.Fatalf("expected %s to pass at its own target, got %v", powder, judgment)
		}
	}

	w = testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/complete", workID), nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("complete failed: %d body %s", w.Code, w.Body.String())
	}
}

// TestDeleteCompletedWork 已完成批次没有逐行修改通道，
// 管理员整批删除重做是唯一纠错路径
func TestDeleteCompletedWork(t *testing.T) {
	env := setupBlendingTest(t)
	admin := testutil.DefaultTestToken()

	testutil.SeedRecipe(t, env.DB, "合金产品A")
	testutil.SeedInspection(t, env.DB, "纯铁粉", "A100", "PASS")
	testutil.SeedInspection(t, env.DB, "铜粉", "C200", "PASS")

	workID, _ := startTestWork(t, env, admin, "WO-2026-008")
	for powder, in := range map[string]map[string]interface{}{
		"纯铁粉": {"lot_number": "A100", "weight": 1400},
		"铜粉":  {"lot_number": "C200", "weight": 600},
	} {
		judge := map[string]interface{}{"powder_name": powder, "lots": []map[string]interface{}{in}}
		w := testutil.DoRequest(env.Router, "POST",
			fmt.Sprintf("/api/v1/qms/blending-works/%s/judge", workID), judge, admin)
		if w.Code != http.StatusOK {
			t.Fatalf("judge %s failed: %d body %s", powder, w.Code, w.Body.String())
		}
	}
	w := testutil.DoRequest(env.Router, "POST",
		fmt.Sprintf("/api/v1/qms/blending-works/%s/complete", workID), nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("complete failed: %d body %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "DELETE",
		fmt.Sprintf("/api/v1/qms/blending-works/%s", workID), nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("expected delete of completed work to succeed, got %d body %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, "GET",
		fmt.Sprintf("/api/v1/qms/blending-works/%s", workID), nil, admin)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}
