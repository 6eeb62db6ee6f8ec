package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/assets_backend/models"
	"bitbucket.org/mmdatafocus/assets_backend/models/reports"
	"bitbucket.org/mmdatafocus/assets_backend/utils"
	"github.com/gin-gonic/gin"
)

func assetMovementReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionMakeReport); err != nil {
			respondError(c, err)
			return
		}

		dateStr := c.Query("date")
		if dateStr == "" {
			respondError(c, utils.NewValidationError("date", "is required"))
			return
		}
		date, err := models.ParseDateString("date", dateStr)
		if err != nil {
			respondError(c, err)
			return
		}

		filter := reports.AssetMovementFilter{
			Category:    c.Query("category"),
			Subcategory: c.Query("subcategory"),
			BranchId:    queryInt(c, "branch_id"),
			WarehouseId: queryInt(c, "warehouse_id"),
		}
		report, err := reports.GetAssetMovementReport(ctx, date, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func averageInboundCostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := models.CheckPermission(ctx, models.PermissionMakeReport); err != nil {
			respondError(c, err)
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		avg, err := reports.GetAverageInboundCost(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"asset_id":             id,
			"average_inbound_cost": avg,
		})
	}
}
