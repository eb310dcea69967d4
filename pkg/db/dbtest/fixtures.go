package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ayurkart/storefront-backend/pkg/db/models"
	"github.com/ayurkart/storefront-backend/pkg/enums"
)

// OrderLine describes a line item to seed with an order.
type OrderLine struct {
	ProductID uuid.UUID
	Quantity  int
	Price     decimal.Decimal
}

// OrderFixture seeds an order and its items.
type OrderFixture struct {
	UserID        uuid.UUID
	Status        enums.OrderStatus
	PaymentStatus enums.PaymentStatus
	Total         decimal.Decimal
	Lines         []OrderLine
}

// CreateProduct inserts a product with the given stock.
func CreateProduct(t testing.TB, conn *gorm.DB, name string, stock int) models.Product {
	t.Helper()
	product := models.Product{Name: name, StockQuantity: stock}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// CreateOrder inserts an order with its line items.
func CreateOrder(t testing.TB, conn *gorm.DB, fixture OrderFixture) models.Order {
	t.Helper()
	if fixture.UserID == uuid.Nil {
		fixture.UserID = uuid.New()
	}
	if fixture.Status == "" {
		fixture.Status = enums.OrderStatusPending
	}
	if fixture.PaymentStatus == "" {
		fixture.PaymentStatus = enums.PaymentStatusPending
	}
	order := models.Order{
		UserID:        fixture.UserID,
		Status:        fixture.Status,
		PaymentStatus: fixture.PaymentStatus,
		TotalAmount:   fixture.Total,
		RefundStatus:  enums.RefundStatusNone,
	}
	if err := conn.Omit("Items").Create(&order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	for _, line := range fixture.Lines {
		item := models.OrderItem{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
		}
		if err := conn.Create(&item).Error; err != nil {
			t.Fatalf("create order item: %v", err)
		}
		order.Items = append(order.Items, item)
	}
	return order
}

// CreateCapture records a completed gateway capture for the order.
func CreateCapture(t testing.TB, conn *gorm.DB, orderID uuid.UUID, amount decimal.Decimal, gatewayPaymentID string) models.PaymentTransaction {
	t.Helper()
	txn := models.PaymentTransaction{
		OrderID:          orderID,
		TransactionID:    "txn_" + uuid.NewString(),
		Amount:           amount,
		Status:           enums.PaymentStatusCompleted,
		PaymentMethod:    "square",
		GatewayPaymentID: &gatewayPaymentID,
	}
	if err := conn.Create(&txn).Error; err != nil {
		t.Fatalf("create capture: %v", err)
	}
	return txn
}

// GrantRole inserts a user_roles row.
func GrantRole(t testing.TB, conn *gorm.DB, userID uuid.UUID, role enums.UserRole, active bool) {
	t.Helper()
	row := models.UserRole{UserID: userID, Role: role, IsActive: active}
	if err := conn.Create(&row).Error; err != nil {
		t.Fatalf("grant role: %v", err)
	}
}

// ReloadOrder reads the order back without items.
func ReloadOrder(t testing.TB, conn *gorm.DB, orderID uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	if err := conn.Where("id = ?", orderID).First(&order).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return order
}

// StockOf returns the product's current stock.
func StockOf(t testing.TB, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.Where("id = ?", productID).First(&product).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.StockQuantity
}

// Count returns the number of rows in table matching the optional condition.
func Count(t testing.TB, conn *gorm.DB, table string, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := conn.Table(table)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
