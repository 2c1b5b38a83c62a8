package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/repository"
	"bakery-orders/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	orders *services.OrderService
	promos *services.PromotionService
	logger *zap.Logger
}

func NewHandler(orders *services.OrderService, promos *services.PromotionService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{orders: orders, promos: promos, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)

	orders := r.Group("/orders")
	orders.POST("", h.CreateOrder)
	orders.GET("", h.ListOrders)
	orders.GET("/:id", h.GetOrder)
	orders.DELETE("/:id", h.DeleteOrder)
	orders.POST("/:id/recalculate", h.Recalculate)
	orders.POST("/:id/items", h.AddItem)
	orders.POST("/:id/status", h.TransitionStatus)
	orders.POST("/:id/payment-status", h.TransitionPayment)
	orders.POST("/:id/cancel", h.Cancel)
	orders.POST("/:id/restore", h.Restore)
	orders.POST("/:id/promotion", h.ApplyPromotion)

	r.PATCH("/order-items/:itemId", h.UpdateItem)
	r.DELETE("/order-items/:itemId", h.RemoveItem)

	r.POST("/promotions", h.CreatePromotion)
	r.GET("/promotions/:id", h.GetPromotion)
	r.POST("/promotions/deactivate-expired", h.DeactivateExpired)

	r.GET("/notifications", h.ListNotifications)
}

func (h *Handler) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	in := services.CreateOrderInput{
		CustomerID:  req.CustomerID,
		ChefID:      req.ChefID,
		DeliveryFee: req.DeliveryFee,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, services.CreateOrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	filter, err := parseOrderFilter(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	page := repository.Pagination{
		Page:  queryInt(c, "page"),
		Limit: queryInt(c, "limit"),
	}

	result, err := h.orders.ListOrders(c.Request.Context(), filter, page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       result.Orders,
		"pagination": Pagination{Page: result.Page, Limit: result.Limit, Total: result.Total},
	})
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, newOrderDetail(order))
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

func (h *Handler) Recalculate(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	order, err := h.orders.Recalculate(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, order)
}

func (h *Handler) AddItem(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.orders.AddItem(c.Request.Context(), id, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, order)
}

func (h *Handler) UpdateItem(c *gin.Context) {
	id, valid := pathID(c, "itemId")
	if !valid {
		return
	}
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.orders.UpdateItemQuantity(c.Request.Context(), id, *req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, order)
}

func (h *Handler) RemoveItem(c *gin.Context) {
	id, valid := pathID(c, "itemId")
	if !valid {
		return
	}
	order, err := h.orders.RemoveItem(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, order)
}

func (h *Handler) TransitionStatus(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.orders.TransitionStatus(c.Request.Context(), services.StatusChange{
		OrderID: id,
		Target:  req.Status,
		Reason:  req.Reason,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, order)
}

func (h *Handler) TransitionPayment(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req PaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.orders.TransitionPayment(c.Request.Context(), id, req.PaymentStatus)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, order)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req CancelRequest
	// the body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	order, err := h.orders.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, order)
}

func (h *Handler) Restore(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	order, err := h.orders.Restore(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, order)
}

func (h *Handler) ApplyPromotion(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req ApplyPromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	order, discount, err := h.orders.ApplyPromotion(c.Request.Context(), id, req.PromotionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ApplyPromotionResponse{Order: order, DiscountAmount: discount})
}

func (h *Handler) CreatePromotion(c *gin.Context) {
	var req CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.promos.CreatePromotion(c.Request.Context(), services.CreatePromotionInput{
		ChefID:        req.ChefID,
		Title:         req.Title,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

func (h *Handler) GetPromotion(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	p, err := h.promos.GetPromotion(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

func (h *Handler) DeactivateExpired(c *gin.Context) {
	n, err := h.promos.DeactivateExpired(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, DeactivateExpiredResponse{Deactivated: n})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	feed, err := h.orders.ListNotifications(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, feed)
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}

func parseOrderFilter(c *gin.Context) (repository.OrderFilter, error) {
	var f repository.OrderFilter
	if raw := c.Query("status"); raw != "" {
		s, valid := domain.ParseOrderStatus(raw)
		if !valid {
			return f, services.ErrInvalidStatus
		}
		f.Status = &s
	}
	if raw := c.Query("paymentStatus"); raw != "" {
		s, valid := domain.ParsePaymentStatus(raw)
		if !valid {
			return f, services.ErrInvalidPaymentStatus
		}
		f.PaymentStatus = &s
	}
	for key, dst := range map[string]**uint64{"customerId": &f.CustomerID, "chefId": &f.ChefID} {
		if raw := c.Query(key); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return f, errInvalidQuery(key)
			}
			*dst = &id
		}
	}
	f.Search = strings.TrimSpace(c.Query("search"))
	for key, dst := range map[string]**time.Time{"from": &f.CreatedFrom, "to": &f.CreatedTo} {
		if raw := c.Query(key); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return f, errInvalidQuery(key)
			}
			*dst = &t
		}
	}
	return f, nil
}

type queryError string

func (e queryError) Error() string { return "invalid query parameter " + string(e) }

func errInvalidQuery(key string) error { return queryError(key) }
