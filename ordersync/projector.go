package ordersync

import (
	"time"

	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/statemachine"
)

// Projections are pure functions over a store snapshot: same input,
// same output, no side effects.

// Active keeps orders still moving through the kitchen.
func Active(orders []models.Order) []models.Order {
	return filter(orders, func(o models.Order) bool {
		return !statemachine.Terminal(statemachine.Status(o.Status))
	})
}

// Completed keeps orders whose every item was delivered and settled.
func Completed(orders []models.Order) []models.Order {
	return filter(orders, func(o models.Order) bool {
		return o.Status == string(statemachine.StatusCompleted)
	})
}

// Cancelled keeps fully cancelled orders.
func Cancelled(orders []models.Order) []models.Order {
	return filter(orders, func(o models.Order) bool {
		return o.Status == string(statemachine.StatusCancelled)
	})
}

// PartitionByDay splits a list into orders created on now's calendar
// date (local time) and everything earlier. The two halves are disjoint
// and together cover the input.
func PartitionByDay(orders []models.Order, now time.Time) (todays, previous []models.Order) {
	y, m, d := now.Local().Date()
	for _, o := range orders {
		oy, om, od := o.CreatedAt.Local().Date()
		if oy == y && om == m && od == d {
			todays = append(todays, o)
		} else {
			previous = append(previous, o)
		}
	}
	return todays, previous
}

// BillableItems keeps the items that count toward the invoice.
// Cancelled items never appear on a bill.
func BillableItems(order models.Order) []models.OrderItem {
	var items []models.OrderItem
	for _, item := range order.Items {
		if item.Status != string(statemachine.StatusCancelled) {
			items = append(items, item)
		}
	}
	return items
}

// BillableTotal sums the billable item subtotals.
func BillableTotal(order models.Order) float64 {
	var total float64
	for _, item := range BillableItems(order) {
		total += item.Subtotal()
	}
	return total
}

func filter(orders []models.Order, keep func(models.Order) bool) []models.Order {
	var out []models.Order
	for _, o := range orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}
