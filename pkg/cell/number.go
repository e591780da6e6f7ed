package cell

// Add adds n to the value of c once it is available.
func Add[N Number](c Observable[N], n N) {
	c.Get().Then(func(v N) { c.Set(v + n) })
}

// Sub subtracts n from the value of c.
func Sub[N Number](c Observable[N], n N) {
	c.Get().Then(func(v N) { c.Set(v - n) })
}

// Mul multiplies the value of c by n.
func Mul[N Number](c Observable[N], n N) {
	c.Get().Then(func(v N) { c.Set(v * n) })
}

// Inc increments the value of c by 1.
func Inc[N Number](c Observable[N]) {
	Add(c, 1)
}

// Dec decrements the value of c by 1.
func Dec[N Number](c Observable[N]) {
	Sub(c, 1)
}
