package httpapi

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/item"
	"github.com/xraph/cahiers/report"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/types"
)

// ==================== School years ====================

type schoolYearRequest struct {
	StartYear int `json:"start_year"`
}

func (h *Handler) createSchoolYear(c *gin.Context) {
	var req schoolYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	y, err := h.ledger.CreateSchoolYear(c.Request.Context(), req.StartYear)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, y)
}

func (h *Handler) listSchoolYears(c *gin.Context) {
	years, err := h.ledger.ListSchoolYears(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, years)
}

func (h *Handler) currentSchoolYear(c *gin.Context) {
	y, err := h.ledger.CurrentSchoolYear(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, y)
}

func (h *Handler) getSchoolYear(c *gin.Context) {
	yearID, err := pathID(c, "id", id.PrefixSchoolYear)
	if err != nil {
		h.fail(c, err)
		return
	}
	y, err := h.ledger.GetSchoolYear(c.Request.Context(), yearID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, y)
}

func (h *Handler) activateSchoolYear(c *gin.Context) {
	yearID, err := pathID(c, "id", id.PrefixSchoolYear)
	if err != nil {
		h.fail(c, err)
		return
	}
	y, err := h.ledger.ActivateSchoolYear(c.Request.Context(), yearID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, y)
}

func (h *Handler) yearSummary(c *gin.Context) {
	yearID, err := pathID(c, "id", id.PrefixSchoolYear)
	if err != nil {
		h.fail(c, err)
		return
	}
	summary, err := h.ledger.YearSummary(c.Request.Context(), yearID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) yearComparison(c *gin.Context) ([]cahiers.YearSummary, bool) {
	n, err := queryInt(c, "n", 3)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	years, err := h.ledger.CompareYears(c.Request.Context(), n)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return years, true
}

func (h *Handler) compareYears(c *gin.Context) {
	if years, ok := h.yearComparison(c); ok {
		c.JSON(http.StatusOK, years)
	}
}

func (h *Handler) compareYearsXLSX(c *gin.Context) {
	years, ok := h.yearComparison(c)
	if !ok {
		return
	}
	f, err := report.YearComparison(years)
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.Write(f, &buf); err != nil {
		h.fail(c, err)
		return
	}
	attachment(c, "comparatif.xlsx", report.ContentType, buf.Bytes())
}

// ==================== Schools ====================

func (h *Handler) createSchool(c *gin.Context) {
	var in cahiers.SchoolInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sc, err := h.ledger.CreateSchool(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sc)
}

func (h *Handler) listSchools(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	schools, err := h.ledger.ListSchools(c.Request.Context(), school.ListOpts{
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, schools)
}

func (h *Handler) getSchool(c *gin.Context) {
	schoolID, err := pathID(c, "id", id.PrefixSchool)
	if err != nil {
		h.fail(c, err)
		return
	}
	sc, err := h.ledger.GetSchool(c.Request.Context(), schoolID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *Handler) updateSchool(c *gin.Context) {
	schoolID, err := pathID(c, "id", id.PrefixSchool)
	if err != nil {
		h.fail(c, err)
		return
	}
	var in cahiers.SchoolInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	sc, err := h.ledger.UpdateSchool(c.Request.Context(), schoolID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *Handler) deleteSchool(c *gin.Context) {
	schoolID, err := pathID(c, "id", id.PrefixSchool)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.ledger.DeleteSchool(c.Request.Context(), schoolID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) schoolDebt(c *gin.Context) {
	schoolID, err := pathID(c, "id", id.PrefixSchool)
	if err != nil {
		h.fail(c, err)
		return
	}
	exclude, err := queryID(c, "exclude_sale_id", id.PrefixSale)
	if err != nil {
		h.fail(c, err)
		return
	}
	debt, err := h.ledger.SchoolDebt(c.Request.Context(), schoolID, cahiers.DebtOpts{ExcludeSaleID: exclude})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, debt)
}

func (h *Handler) statement(c *gin.Context) (*cahiers.Statement, bool) {
	schoolID, err := pathID(c, "id", id.PrefixSchool)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	stmt, err := h.ledger.SchoolStatement(c.Request.Context(), schoolID, h.now())
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return stmt, true
}

func (h *Handler) schoolStatement(c *gin.Context) {
	if stmt, ok := h.statement(c); ok {
		c.JSON(http.StatusOK, stmt)
	}
}

func (h *Handler) schoolStatementXLSX(c *gin.Context) {
	stmt, ok := h.statement(c)
	if !ok {
		return
	}
	f, err := report.Statement(stmt)
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := report.Write(f, &buf); err != nil {
		h.fail(c, err)
		return
	}
	attachment(c, "recapitulatif-"+stmt.School.ID.String()+".xlsx", report.ContentType, buf.Bytes())
}

// ==================== Items ====================

type itemRequest struct {
	Title         string          `json:"title"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Currency      string          `json:"currency"`
	StockQuantity int64           `json:"stock_quantity"`
}

func (r itemRequest) input() cahiers.ItemInput {
	return cahiers.ItemInput{
		Title:         r.Title,
		UnitPrice:     types.New(r.UnitPrice, r.Currency),
		StockQuantity: r.StockQuantity,
	}
}

type restockRequest struct {
	Quantity int64 `json:"quantity"`
}

func (h *Handler) createItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	it, err := h.ledger.CreateItem(c.Request.Context(), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

func (h *Handler) listItems(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	below, err := queryInt(c, "below_stock", 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	items, err := h.ledger.ListItems(c.Request.Context(), item.ListOpts{
		Search:     c.Query("search"),
		BelowStock: int64(below),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) lowStockItems(c *gin.Context) {
	threshold, err := queryInt(c, "threshold", 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	items, err := h.ledger.LowStockItems(c.Request.Context(), int64(threshold))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) getItem(c *gin.Context) {
	itemID, err := pathID(c, "id", id.PrefixItem)
	if err != nil {
		h.fail(c, err)
		return
	}
	it, err := h.ledger.GetItem(c.Request.Context(), itemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *Handler) updateItem(c *gin.Context) {
	itemID, err := pathID(c, "id", id.PrefixItem)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	it, err := h.ledger.UpdateItem(c.Request.Context(), itemID, req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (h *Handler) deleteItem(c *gin.Context) {
	itemID, err := pathID(c, "id", id.PrefixItem)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.ledger.DeleteItem(c.Request.Context(), itemID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) restockItem(c *gin.Context) {
	itemID, err := pathID(c, "id", id.PrefixItem)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	it, err := h.ledger.RestockItem(c.Request.Context(), itemID, req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// attachment sends a downloadable document.
func attachment(c *gin.Context, filename, contentType string, body []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, body)
}
