package farm

const (
	WithdrawalUnavailableDays uint64 = 30
	WithdrawalAvailableDays   uint64 = 7

	secondsPerDay uint64 = 24 * 60 * 60
)

// WithdrawalAvailable reports whether a position deposited at deposit sits in
// an open withdrawal window at now. Windows alternate locked then open,
// starting locked at deposit time.
func WithdrawalAvailable(deposit, now uint64) bool {
	locked := WithdrawalUnavailableDays * secondsPerDay
	if now < deposit+locked {
		return false
	}
	period := (WithdrawalUnavailableDays + WithdrawalAvailableDays) * secondsPerDay
	return (now-deposit)%period >= locked
}

// NextWithdrawalTime returns the first window opening strictly after now.
func NextWithdrawalTime(deposit, now uint64) uint64 {
	first := deposit + WithdrawalUnavailableDays*secondsPerDay
	if first > now {
		return first
	}
	period := (WithdrawalUnavailableDays + WithdrawalAvailableDays) * secondsPerDay
	return first + ((now-first)/period+1)*period
}
