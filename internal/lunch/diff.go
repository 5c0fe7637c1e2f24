package lunch

// DiffOrders partitions the orders placed against oldMenu into the ones a
// menu edit invalidated and the ones still servable under newMenu. The
// two results partition the input exactly and preserve its order.
//
// The function is pure: it works on plain snapshots, mutates nothing, and
// never reports validation errors — an order it cannot make sense of
// (no course, both courses, or a course the old menu never offered) is
// invalidated defensively so its owner gets renotified.
func DiffOrders(oldMenu, newMenu *DailyMenu, orders []*Order) (invalidated, stillValid []*Order) {
	oldIdx := looseMenuIndex(oldMenu)
	newIdx := looseMenuIndex(newMenu)

	invalidated = make([]*Order, 0, len(orders))
	stillValid = make([]*Order, 0, len(orders))

	for _, order := range orders {
		if orderSurvives(order, oldIdx, newIdx) {
			stillValid = append(stillValid, order)
		} else {
			invalidated = append(invalidated, order)
		}
	}
	return invalidated, stillValid
}

func orderSurvives(order *Order, oldIdx, newIdx *MenuIndex) bool {
	if order == nil {
		return false
	}

	// Table removed from the new menu: nothing else to check.
	if !newIdx.HasTable(order.TableID) {
		return false
	}

	first := order.HasFirstCourse()
	second := order.HasSecondCourse()
	if first == second {
		return false
	}

	if first {
		if !oldIdx.HasFirstCourse(order.FirstCourse.Item) {
			return false
		}
		if !newIdx.HasFirstCourse(order.FirstCourse.Item) {
			return false
		}
		if order.FirstCourse.Condiment != "" &&
			!newIdx.AllowsCondiment(order.FirstCourse.Item, order.FirstCourse.Condiment) {
			return false
		}
		return true
	}

	if !oldIdx.HasSecondCourse(order.SecondCourse.Item) {
		return false
	}
	if !newIdx.HasSecondCourse(order.SecondCourse.Item) {
		return false
	}
	for _, dish := range order.SecondCourse.SideDishes {
		if !newIdx.HasSideDish(dish) {
			return false
		}
	}
	return true
}
