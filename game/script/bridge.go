package script

import (
	"math"

	"github.com/dop251/goja"

	"github.com/wricardo/jshero/game/engine"
)

// newPlayerHandle exposes p to JavaScript as the argument of solution.
// Actions throw once the run has failed; positions are read-only properties.
func newPlayerHandle(vm *goja.Runtime, p engine.Player) *goja.Object {
	obj := vm.NewObject()

	_ = obj.Set("turnLeft", p.TurnLeft)
	_ = obj.Set("turnRight", p.TurnRight)
	_ = obj.Set("step", p.Step)
	_ = obj.Set("attack", p.Attack)

	_ = obj.Set("check", func(side string) string {
		return string(p.Check(side))
	})
	_ = obj.Set("checkMap", func(x, y goja.Value) string {
		col, okX := coordinate(x)
		row, okY := coordinate(y)
		if !okX || !okY {
			return string(engine.CategoryError)
		}
		return string(p.CheckMap(col, row))
	})
	_ = obj.Set("isNextToTarget", p.IsNextToTarget)

	getter := func(get func() interface{}) goja.Value {
		return vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(get())
		})
	}
	props := map[string]func() interface{}{
		"x":         func() interface{} { return p.X() },
		"y":         func() interface{} { return p.Y() },
		"direction": func() interface{} { return string(p.Direction()) },
		"target_x":  func() interface{} { return p.TargetX() },
		"target_y":  func() interface{} { return p.TargetY() },
	}
	for name, get := range props {
		_ = obj.DefineAccessorProperty(name, getter(get), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}

	return obj
}

// coordinate accepts only integral numbers. Anything else, including
// strings that look like numbers, is not a map cell.
func coordinate(v goja.Value) (int, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false
	}
	switch n := v.Export().(type) {
	case int64:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
