package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/assets_backend/models"
	"bitbucket.org/mmdatafocus/assets_backend/workflow"
	"github.com/gin-gonic/gin"
)

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// transactionFilterFromQuery builds the shared list/summary filter from query
// params. Bad dates surface as field-level validation errors.
func transactionFilterFromQuery(c *gin.Context) (models.TransactionFilter, error) {
	filter := models.TransactionFilter{
		BranchId:    queryInt(c, "branch_id"),
		WarehouseId: queryInt(c, "warehouse_id"),
		Search:      c.Query("search"),
	}
	if v := c.Query("date_from"); v != "" {
		t, err := models.ParseDateString("date_from", v)
		if err != nil {
			return filter, err
		}
		filter.DateFrom = &t
	}
	if v := c.Query("date_to"); v != "" {
		t, err := models.ParseDateString("date_to", v)
		if err != nil {
			return filter, err
		}
		filter.DateTo = &t
	}
	return filter, nil
}

func createTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionMakeTransaction); err != nil {
			respondError(c, err)
			return
		}
		var input models.NewAssetTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		transaction, err := workflow.CreateAssetTransaction(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, transaction)
	}
}

func listTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionReadAsset); err != nil {
			respondError(c, err)
			return
		}
		filter, err := transactionFilterFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		page := queryInt(c, "page")
		perPage := queryInt(c, "per_page")
		results, total, err := models.PaginateAssetTransactions(ctx, filter, page, perPage)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":  results,
			"total": total,
			"page":  max(page, 1),
		})
	}
}

func getTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionReadAsset); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		transaction, err := models.GetAssetTransaction(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, transaction)
	}
}

func updateTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionMakeTransaction); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.UpdateAssetTransactionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		transaction, err := workflow.UpdateAssetTransaction(ctx, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, transaction)
	}
}

func deleteTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionDeleteTransaction); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := workflow.DeleteAssetTransaction(ctx, id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listTransactionLinesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionReadAsset); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		lines, err := models.GetTransactionLines(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": lines})
	}
}

func addTransactionLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionMakeTransaction); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewAssetTransactionLine
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		line, err := workflow.AddTransactionLine(ctx, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, line)
	}
}

func getTransactionLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionReadAsset); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		line, err := models.GetTransactionLine(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, line)
	}
}

func updateTransactionLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionMakeTransaction); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.UpdateAssetTransactionLineInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		line, err := workflow.UpdateTransactionLine(ctx, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, line)
	}
}

func deleteTransactionLineHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionDeleteTransaction); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		if err := workflow.DeleteTransactionLine(ctx, id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func transactionSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionMakeReport); err != nil {
			respondError(c, err)
			return
		}
		filter, err := transactionFilterFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		summary, err := models.AssetTransactionSummary(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
