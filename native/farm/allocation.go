package farm

const (
	// ReallocationInterval is the time between allocation rotations (nine
	// months).
	ReallocationInterval uint64 = 365 * 24 * 60 * 60 * 3 / 4
)

// baseAllocations are the undoubled weights of Spring, Summer, Autumn and
// Winter.
var baseAllocations = [NumSeasons]uint64{5, 6, 7, 8}

// NumberOfReallocations returns how many full reallocation intervals elapsed
// between start and now.
func NumberOfReallocations(start, now uint64) uint64 {
	if now < start+ReallocationInterval {
		return 0
	}
	return (now - start) / ReallocationInterval
}

// AllocationSizes returns the current weight of each season. Every
// reallocation doubles the next season in Spring, Summer, Autumn order and
// the fourth resets all weights to their base.
func AllocationSizes(start, now uint64) [NumSeasons]uint64 {
	phase := NumberOfReallocations(start, now) % NumSeasons
	var sizes [NumSeasons]uint64
	for i, base := range baseAllocations {
		sizes[i] = base
		if phase >= uint64(i)+1 {
			sizes[i] = 2 * base
		}
	}
	return sizes
}

// EffectiveTotalAllocationSize sums the weights of the flagged seasons.
func EffectiveTotalAllocationSize(sizes [NumSeasons]uint64, flags [NumSeasons]bool) uint64 {
	var total uint64
	for i, flagged := range flags {
		if flagged {
			total += sizes[i]
		}
	}
	return total
}
