package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/assets_backend/config"
	"bitbucket.org/mmdatafocus/assets_backend/models"
	"bitbucket.org/mmdatafocus/assets_backend/models/reports"
	"bitbucket.org/mmdatafocus/assets_backend/utils"
	"bitbucket.org/mmdatafocus/assets_backend/workflow"
	"github.com/shopspring/decimal"
)

// ledgerTestEnv is the fixture every integration test shares: fresh MySQL and
// Redis containers, migrated schema, one branch/warehouse/category and a user
// in context.
type ledgerTestEnv struct {
	ctx       context.Context
	branch    *models.Branch
	warehouse *models.Warehouse
	category  *models.Category
}

func setupLedgerTestEnv(t *testing.T) *ledgerTestEnv {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "assets_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	branch := &models.Branch{NameEn: "Test Branch", NameAr: "فرع"}
	if err := db.Create(branch).Error; err != nil {
		t.Fatalf("create branch: %v", err)
	}
	warehouse := &models.Warehouse{BranchId: branch.ID, NameEn: "Test Warehouse", NameAr: "مستودع"}
	if err := db.Create(warehouse).Error; err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	category := &models.Category{Category: "IT Equipment", Subcategory: "Laptops"}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}
	user := &models.User{
		Username:             "clerk",
		FullName:             "Test Clerk",
		PasswordHash:         "x",
		Role:                 "Clerk",
		IsActive:             utils.NewTrue(),
		CanReadAsset:         true,
		CanMakeTransaction:   true,
		CanDeleteTransaction: true,
		CanMakeReport:        true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	ctx := utils.SetUserIdInContext(context.Background(), user.ID)
	return &ledgerTestEnv{ctx: ctx, branch: branch, warehouse: warehouse, category: category}
}

func (env *ledgerTestEnv) createAsset(t *testing.T, name string, quantity int) *models.FixedAsset {
	t.Helper()
	asset := &models.FixedAsset{
		NameEn:     name,
		CategoryId: env.category.ID,
		IsActive:   utils.NewTrue(),
		Quantity:   quantity,
	}
	if err := config.GetDB().Create(asset).Error; err != nil {
		t.Fatalf("create asset %q: %v", name, err)
	}
	return asset
}

func (env *ledgerTestEnv) assetQuantity(t *testing.T, assetId int) int {
	t.Helper()
	var asset models.FixedAsset
	if err := config.GetDB().First(&asset, assetId).Error; err != nil {
		t.Fatalf("reload asset %d: %v", assetId, err)
	}
	return asset.Quantity
}

func amountOf(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// Full lifecycle: post an OUT, reject an overdraw, shrink and grow the line,
// then delete — stock must land back where it started.
func TestLedgerOutLifecycleRestoresStock(t *testing.T) {
	env := setupLedgerTestEnv(t)
	asset := env.createAsset(t, "ThinkPad T14", 10)

	txn, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-10",
		WarehouseId: env.warehouse.ID,
		Direction:   "OUT",
		Description: "issued to accounting",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: asset.ID, Quantity: 4},
		},
	})
	if err != nil {
		t.Fatalf("CreateAssetTransaction: %v", err)
	}
	if got := env.assetQuantity(t, asset.ID); got != 6 {
		t.Fatalf("after OUT 4: quantity = %d, want 6", got)
	}
	wantCustomId := fmt.Sprintf("%d-1", env.branch.ID)
	if txn.CustomId != wantCustomId {
		t.Fatalf("custom id = %q, want %q", txn.CustomId, wantCustomId)
	}

	// Overdraw must be rejected atomically and leave stock untouched.
	_, err = workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-11",
		WarehouseId: env.warehouse.ID,
		Direction:   "OUT",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: asset.ID, Quantity: 10},
		},
	})
	var stockErr *utils.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 10 || stockErr.Available != 6 {
		t.Fatalf("unexpected stock error payload: %+v", stockErr)
	}
	if got := env.assetQuantity(t, asset.ID); got != 6 {
		t.Fatalf("after rejected OUT: quantity = %d, want 6", got)
	}

	// Shrink the line 4 -> 2: the delta is relative to the reversed state.
	lineId := txn.Lines[0].ID
	two := 2
	if _, err := workflow.UpdateTransactionLine(env.ctx, lineId, &models.UpdateAssetTransactionLineInput{Quantity: &two}); err != nil {
		t.Fatalf("UpdateTransactionLine 4->2: %v", err)
	}
	if got := env.assetQuantity(t, asset.ID); got != 8 {
		t.Fatalf("after line 4->2: quantity = %d, want 8", got)
	}

	// Delete restores the remaining effect.
	if err := workflow.DeleteAssetTransaction(env.ctx, txn.ID); err != nil {
		t.Fatalf("DeleteAssetTransaction: %v", err)
	}
	if got := env.assetQuantity(t, asset.ID); got != 10 {
		t.Fatalf("after delete: quantity = %d, want 10", got)
	}
	if _, err := models.GetAssetTransaction(env.ctx, txn.ID); !utils.IsNotFound(err) {
		t.Fatalf("deleted transaction still resolvable: %v", err)
	}
}

// Two lines on the same asset must be checked as one cumulative delta.
func TestLedgerCumulativeDeltaAcrossLines(t *testing.T) {
	env := setupLedgerTestEnv(t)
	asset := env.createAsset(t, "Dell Monitor", 5)

	_, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-12",
		WarehouseId: env.warehouse.ID,
		Direction:   "OUT",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: asset.ID, Quantity: 3},
			{AssetId: asset.ID, Quantity: 3},
		},
	})
	var stockErr *utils.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected cumulative overdraw rejection, got %v", err)
	}
	if got := env.assetQuantity(t, asset.ID); got != 5 {
		t.Fatalf("rejected post must not move stock: quantity = %d", got)
	}
}

// Direction flip reverses under the old direction and reapplies under the new
// one in a single atomic step.
func TestLedgerDirectionFlip(t *testing.T) {
	env := setupLedgerTestEnv(t)
	asset := env.createAsset(t, "Standing Desk", 10)

	txn, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-13",
		WarehouseId: env.warehouse.ID,
		Direction:   "IN",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: asset.ID, Quantity: 4, UnitAmount: amountOf("1300.00")},
		},
	})
	if err != nil {
		t.Fatalf("CreateAssetTransaction: %v", err)
	}
	if got := env.assetQuantity(t, asset.ID); got != 14 {
		t.Fatalf("after IN 4: quantity = %d, want 14", got)
	}

	out := "OUT"
	updated, err := workflow.UpdateAssetTransaction(env.ctx, txn.ID, &models.UpdateAssetTransactionInput{Direction: &out})
	if err != nil {
		t.Fatalf("direction flip: %v", err)
	}
	if updated.Direction != models.DirectionOut {
		t.Fatalf("direction = %s after flip", updated.Direction)
	}
	// 14 - 4 (reverse IN) - 4 (apply OUT) = 6
	if got := env.assetQuantity(t, asset.ID); got != 6 {
		t.Fatalf("after flip: quantity = %d, want 6", got)
	}

	// Custom id must survive every edit.
	if updated.CustomId != txn.CustomId {
		t.Fatalf("custom id changed on update: %q -> %q", txn.CustomId, updated.CustomId)
	}
	someId := "1-999"
	if _, err := workflow.UpdateAssetTransaction(env.ctx, txn.ID, &models.UpdateAssetTransactionInput{CustomId: &someId}); !utils.IsValidation(err) {
		t.Fatalf("custom id change must be a validation failure, got %v", err)
	}
}

// Concurrent posts to one branch must come out with distinct sequential
// custom ids, and a rejected post must not burn a number.
func TestLedgerSequenceConcurrencyAndRollback(t *testing.T) {
	env := setupLedgerTestEnv(t)
	asset := env.createAsset(t, "Projector", 100)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
				Date:        "2026-08-14",
				WarehouseId: env.warehouse.ID,
				Direction:   "OUT",
				Lines: []models.NewAssetTransactionLine{
					{AssetId: asset.ID, Quantity: 1},
				},
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}

	var customIds []string
	if err := config.GetDB().Model(&models.Transaction{}).Order("sequence_no").Pluck("custom_id", &customIds).Error; err != nil {
		t.Fatalf("pluck custom ids: %v", err)
	}
	if len(customIds) != workers {
		t.Fatalf("got %d transactions, want %d", len(customIds), workers)
	}
	seen := map[string]bool{}
	for n, id := range customIds {
		if seen[id] {
			t.Fatalf("duplicate custom id %q", id)
		}
		seen[id] = true
		want := fmt.Sprintf("%d-%d", env.branch.ID, n+1)
		if id != want {
			t.Fatalf("custom id gap: got %q at position %d, want %q", id, n, want)
		}
	}

	// A rejected post rolls back its reserved number; the next good post
	// continues the sequence without a gap.
	if _, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-14",
		WarehouseId: env.warehouse.ID,
		Direction:   "OUT",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: asset.ID, Quantity: 1000},
		},
	}); err == nil {
		t.Fatalf("expected overdraw rejection")
	}
	txn, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-14",
		WarehouseId: env.warehouse.ID,
		Direction:   "OUT",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: asset.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("post after rejection: %v", err)
	}
	want := fmt.Sprintf("%d-%d", env.branch.ID, workers+1)
	if txn.CustomId != want {
		t.Fatalf("sequence gap after rollback: got %q, want %q", txn.CustomId, want)
	}
}

func TestAssetMovementReportAndAverageCost(t *testing.T) {
	env := setupLedgerTestEnv(t)
	asset := env.createAsset(t, "ThinkPad T14", 0)

	if _, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-15",
		WarehouseId: env.warehouse.ID,
		Direction:   "IN",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: asset.ID, Quantity: 10, UnitAmount: amountOf("4000.00")},
		},
	}); err != nil {
		t.Fatalf("post IN: %v", err)
	}
	if _, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-15",
		WarehouseId: env.warehouse.ID,
		Direction:   "OUT",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: asset.ID, Quantity: 4, UnitAmount: amountOf("4000.00")},
		},
	}); err != nil {
		t.Fatalf("post OUT: %v", err)
	}
	// Second intake at a different price for the average.
	if _, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-16",
		WarehouseId: env.warehouse.ID,
		Direction:   "IN",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: asset.ID, Quantity: 5, UnitAmount: amountOf("5000.00")},
		},
	}); err != nil {
		t.Fatalf("post second IN: %v", err)
	}

	day, _ := time.Parse("2006-01-02", "2026-08-15")
	report, err := reports.GetAssetMovementReport(env.ctx, day, reports.AssetMovementFilter{})
	if err != nil {
		t.Fatalf("GetAssetMovementReport: %v", err)
	}
	if len(report.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(report.Rows))
	}
	row := report.Rows[0]
	if row.InQty != 10 || row.OutQty != 4 || row.NetQty != 6 {
		t.Fatalf("row quantities wrong: %+v", row)
	}
	if !row.InValue.Equal(decimal.RequireFromString("40000")) ||
		!row.OutValue.Equal(decimal.RequireFromString("16000")) ||
		!row.NetValue.Equal(decimal.RequireFromString("24000")) {
		t.Fatalf("row values wrong: in=%s out=%s net=%s", row.InValue, row.OutValue, row.NetValue)
	}
	if report.Totals.NetQty != 6 || !report.Totals.NetValue.Equal(decimal.RequireFromString("24000")) {
		t.Fatalf("totals wrong: %+v", report.Totals)
	}

	// A day with no movements yields empty rows and zero totals, not an error.
	emptyDay, _ := time.Parse("2006-01-02", "2026-01-01")
	empty, err := reports.GetAssetMovementReport(env.ctx, emptyDay, reports.AssetMovementFilter{})
	if err != nil {
		t.Fatalf("empty-day report: %v", err)
	}
	if len(empty.Rows) != 0 || empty.Totals.NetQty != 0 || !empty.Totals.NetValue.IsZero() {
		t.Fatalf("empty-day report not empty: %+v", empty)
	}

	// Intake lines without a unit amount (or with a zero amount) carry no
	// price signal and must not drag the average down.
	if _, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-17",
		WarehouseId: env.warehouse.ID,
		Direction:   "IN",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: asset.ID, Quantity: 3},
			{AssetId: asset.ID, Quantity: 2, UnitAmount: amountOf("0")},
		},
	}); err != nil {
		t.Fatalf("post unpriced IN: %v", err)
	}

	// Average over the two priced intake lines: (4000 + 5000) / 2.
	avg, err := reports.GetAverageInboundCost(env.ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAverageInboundCost: %v", err)
	}
	if !avg.Equal(decimal.RequireFromString("4500")) {
		t.Fatalf("average inbound cost = %s, want 4500", avg)
	}

	// An asset with no priced IN lines averages to zero, not an error.
	unpriced := env.createAsset(t, "Whiteboard", 10)
	if _, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-17",
		WarehouseId: env.warehouse.ID,
		Direction:   "OUT",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: unpriced.ID, Quantity: 1, UnitAmount: amountOf("250.00")},
		},
	}); err != nil {
		t.Fatalf("post OUT for unpriced asset: %v", err)
	}
	zeroAvg, err := reports.GetAverageInboundCost(env.ctx, unpriced.ID)
	if err != nil {
		t.Fatalf("GetAverageInboundCost (no IN lines): %v", err)
	}
	if !zeroAvg.IsZero() {
		t.Fatalf("average inbound cost without priced IN lines = %s, want 0", zeroAvg)
	}
}

// Deactivated assets accept no new movements, but reversing already posted
// movements still works so old transactions stay deletable.
func TestLedgerRejectsInactiveAsset(t *testing.T) {
	env := setupLedgerTestEnv(t)
	db := config.GetDB()

	retired := &models.FixedAsset{
		NameEn:     "Retired Printer",
		CategoryId: env.category.ID,
		IsActive:   utils.NewFalse(),
		Quantity:   5,
	}
	if err := db.Create(retired).Error; err != nil {
		t.Fatalf("create retired asset: %v", err)
	}

	_, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-18",
		WarehouseId: env.warehouse.ID,
		Direction:   "OUT",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: retired.ID, Quantity: 1},
		},
	})
	if !utils.IsNotFound(err) {
		t.Fatalf("posting against an inactive asset must be a not-found, got %v", err)
	}
	if got := env.assetQuantity(t, retired.ID); got != 5 {
		t.Fatalf("rejected post moved stock: quantity = %d", got)
	}

	// Deactivating an asset after posting must not strand its transactions.
	active := env.createAsset(t, "Aging Scanner", 5)
	txn, err := workflow.CreateAssetTransaction(env.ctx, &models.NewAssetTransaction{
		Date:        "2026-08-18",
		WarehouseId: env.warehouse.ID,
		Direction:   "OUT",
		Lines: []models.NewAssetTransactionLine{
			{AssetId: active.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("post OUT: %v", err)
	}
	if err := db.Model(&models.FixedAsset{}).Where("id = ?", active.ID).
		Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate asset: %v", err)
	}
	if _, err := workflow.AddTransactionLine(env.ctx, txn.ID, &models.NewAssetTransactionLine{
		AssetId: active.ID, Quantity: 1,
	}); !utils.IsNotFound(err) {
		t.Fatalf("adding a line for a now-inactive asset must be a not-found, got %v", err)
	}
	if err := workflow.DeleteAssetTransaction(env.ctx, txn.ID); err != nil {
		t.Fatalf("delete transaction on inactive asset: %v", err)
	}
	if got := env.assetQuantity(t, active.ID); got != 5 {
		t.Fatalf("after delete: quantity = %d, want 5", got)
	}
}

func TestLedgerPermissionAndAuthGates(t *testing.T) {
	setupLedgerTestEnv(t)

	// No user in context.
	if err := models.CheckPermission(context.Background(), models.PermissionMakeTransaction); !errors.Is(err, utils.ErrorUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	// A user without the delete flag.
	db := config.GetDB()
	limited := &models.User{
		Username:     "viewer",
		FullName:     "Viewer",
		PasswordHash: "x",
		Role:         "Viewer",
		IsActive:     utils.NewTrue(),
		CanReadAsset: true,
	}
	if err := db.Create(limited).Error; err != nil {
		t.Fatalf("create viewer: %v", err)
	}
	viewerCtx := utils.SetUserIdInContext(context.Background(), limited.ID)
	if err := models.CheckPermission(viewerCtx, models.PermissionReadAsset); err != nil {
		t.Fatalf("read permission denied unexpectedly: %v", err)
	}
	err := models.CheckPermission(viewerCtx, models.PermissionDeleteTransaction)
	if !utils.IsPermissionDenied(err) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("assets-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("assets-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=assets_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
