package gosortable

const (
	NoLimit      = -1
	MaxLimit     = 1000
	DefaultLimit = 100
)

func IsNormalizedLimitMax(limit int, maxLimit int) (int, bool) {
	if limit == NoLimit {
		return NoLimit, true
	} else if limit <= 0 {
		return DefaultLimit, false
	} else if limit > maxLimit {
		return maxLimit, false
	}

	return limit, true
}

func NormalizeLimitMax(limit int, maxLimit int) int {
	ret, _ := IsNormalizedLimitMax(limit, maxLimit)
	return ret
}

func NormalizeLimit(limit int) int {
	return NormalizeLimitMax(limit, MaxLimit)
}
