package httpapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/reconcile"
	"github.com/xraph/cahiers/sale"
	"github.com/xraph/cahiers/types"
)

// saleView is a sale with its computed position.
type saleView struct {
	*sale.Sale
	Balance reconcile.Balance `json:"balance"`
	Status  sale.Status       `json:"status"`
}

func (h *Handler) view(s *sale.Sale) saleView {
	b := reconcile.BalanceOf(s)
	return saleView{Sale: s, Balance: b, Status: reconcile.StatusOf(b, s.DueDate, h.now())}
}

// linesRequest accepts lines either as objects or as the parallel item and
// quantity lists submitted by order forms.
type linesRequest struct {
	Lines      []cahiers.LineInput `json:"lines"`
	ItemIDs    []id.ItemID         `json:"item_ids"`
	Quantities []int64             `json:"quantities"`
}

func (r linesRequest) lines() ([]cahiers.LineInput, error) {
	if len(r.ItemIDs) == 0 && len(r.Quantities) == 0 {
		return r.Lines, nil
	}
	parallel, err := cahiers.LineInputs(r.ItemIDs, r.Quantities)
	if err != nil {
		return nil, err
	}
	return append(r.Lines, parallel...), nil
}

type saleRequest struct {
	linesRequest
	SchoolID       id.SchoolID      `json:"school_id"`
	SchoolYearID   id.SchoolYearID  `json:"school_year_id"`
	DueDate        *time.Time       `json:"due_date"`
	InitialPayment *decimal.Decimal `json:"initial_payment"`
	Currency       string           `json:"currency"`
}

type quantityRequest struct {
	Quantity int64 `json:"quantity"`
}

type paymentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	PaidAt   *time.Time      `json:"paid_at"`
}

// ==================== Sales ====================

func (h *Handler) createSale(c *gin.Context) {
	var req saleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lines, err := req.lines()
	if err != nil {
		h.fail(c, err)
		return
	}
	in := cahiers.CreateSaleInput{
		SchoolID:     req.SchoolID,
		SchoolYearID: req.SchoolYearID,
		Lines:        lines,
		DueDate:      req.DueDate,
	}
	if req.InitialPayment != nil {
		m := types.New(*req.InitialPayment, req.Currency)
		in.InitialPayment = &m
	}

	s, err := h.ledger.CreateSale(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.view(s))
}

func (h *Handler) listSales(c *gin.Context) {
	schoolID, err := queryID(c, "school_id", id.PrefixSchool)
	if err != nil {
		h.fail(c, err)
		return
	}
	yearID, err := queryID(c, "school_year_id", id.PrefixSchoolYear)
	if err != nil {
		h.fail(c, err)
		return
	}
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

	sales, err := h.ledger.ListSales(c.Request.Context(), sale.ListOpts{
		SchoolID:     schoolID,
		SchoolYearID: yearID,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]saleView, len(sales))
	for i, s := range sales {
		out[i] = h.view(s)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getSale(c *gin.Context) {
	saleID, err := pathID(c, "id", id.PrefixSale)
	if err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.ledger.GetSale(c.Request.Context(), saleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(s))
}

func (h *Handler) deleteSale(c *gin.Context) {
	saleID, err := pathID(c, "id", id.PrefixSale)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.ledger.DeleteSale(c.Request.Context(), saleID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) overdueSales(c *gin.Context) {
	due, err := h.ledger.OverdueSales(c.Request.Context(), h.now())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, due)
}

func (h *Handler) upcomingSales(c *gin.Context) {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		h.fail(c, err)
		return
	}
	due, err := h.ledger.UpcomingDueSales(c.Request.Context(), h.now(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, due)
}

// ==================== Line items ====================

// editLines binds a lines request and applies edit to the sale.
func (h *Handler) editLines(c *gin.Context, edit func(saleID id.SaleID, lines []cahiers.LineInput) (*sale.Sale, error)) {
	saleID, err := pathID(c, "id", id.PrefixSale)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req linesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lines, err := req.lines()
	if err != nil {
		h.fail(c, err)
		return
	}
	s, err := edit(saleID, lines)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(s))
}

func (h *Handler) addLines(c *gin.Context) {
	h.editLines(c, func(saleID id.SaleID, lines []cahiers.LineInput) (*sale.Sale, error) {
		return h.ledger.AddLineItems(c.Request.Context(), saleID, lines)
	})
}

func (h *Handler) replaceLines(c *gin.Context) {
	h.editLines(c, func(saleID id.SaleID, lines []cahiers.LineInput) (*sale.Sale, error) {
		return h.ledger.ReplaceLineItems(c.Request.Context(), saleID, lines)
	})
}

func (h *Handler) updateLine(c *gin.Context) {
	saleID, err := pathID(c, "id", id.PrefixSale)
	if err != nil {
		h.fail(c, err)
		return
	}
	lineID, err := pathID(c, "line", id.PrefixLineItem)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.ledger.UpdateLineQuantity(c.Request.Context(), saleID, lineID, req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(s))
}

func (h *Handler) removeLine(c *gin.Context) {
	saleID, err := pathID(c, "id", id.PrefixSale)
	if err != nil {
		h.fail(c, err)
		return
	}
	lineID, err := pathID(c, "line", id.PrefixLineItem)
	if err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.ledger.RemoveLineItem(c.Request.Context(), saleID, lineID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(s))
}

func (h *Handler) recomputeDebt(c *gin.Context) {
	saleID, err := pathID(c, "id", id.PrefixSale)
	if err != nil {
		h.fail(c, err)
		return
	}
	debt, err := h.ledger.RecomputeDebt(c.Request.Context(), saleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, debt)
}

// ==================== Payments ====================

func (h *Handler) listPayments(c *gin.Context) {
	saleID, err := pathID(c, "id", id.PrefixSale)
	if err != nil {
		h.fail(c, err)
		return
	}
	payments, err := h.ledger.ListPayments(c.Request.Context(), saleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (h *Handler) recordPayment(c *gin.Context) {
	saleID, err := pathID(c, "id", id.PrefixSale)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var opts cahiers.PaymentOpts
	if req.PaidAt != nil {
		opts.PaidAt = *req.PaidAt
	}
	receipt, err := h.ledger.RecordPayment(c.Request.Context(), saleID, types.New(req.Amount, req.Currency), opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *Handler) cancelPayment(c *gin.Context) {
	paymentID, err := pathID(c, "id", id.PrefixPayment)
	if err != nil {
		h.fail(c, err)
		return
	}
	p, err := h.ledger.CancelPayment(c.Request.Context(), paymentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ==================== Invoices ====================

func (h *Handler) invoice(c *gin.Context) {
	saleID, err := pathID(c, "id", id.PrefixSale)
	if err != nil {
		h.fail(c, err)
		return
	}
	snap, err := h.ledger.InvoiceSnapshot(c.Request.Context(), saleID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) invoiceXLSX(c *gin.Context) {
	saleID, err := pathID(c, "id", id.PrefixSale)
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	contentType, err := h.ledger.RenderInvoice(c.Request.Context(), saleID, "xlsx", &buf)
	if err != nil {
		h.fail(c, err)
		return
	}
	attachment(c, "facture-"+saleID.String()+".xlsx", contentType, buf.Bytes())
}
