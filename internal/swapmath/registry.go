package swapmath

// registry maps a curve family to its SwapCurve implementation, the same
// register/get shape the teacher used for its per-venue quoter/router
// registry, generalized here to swap-math families instead of CEX/DEX
// venues.
var registry = map[Family]SwapCurve{
	FamilyConcentratedLiquidity: Concentrated{},
	FamilyConstantProduct:       ConstantProduct{},
}

// Register installs or overrides the SwapCurve for a family; new DEX
// flavors (stable swap, etc.) plug in here without the evaluator changing.
func Register(family Family, curve SwapCurve) { registry[family] = curve }

// Get returns the SwapCurve for a family, or nil if none is registered.
func Get(family Family) SwapCurve { return registry[family] }
