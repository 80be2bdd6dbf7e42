package hash

import "golang.org/x/crypto/bcrypt"

// Bcrypt hashes with bcrypt after appending a server side pepper.
type Bcrypt struct {
	cost   int
	pepper string
}

// NewBcrypt falls back to bcrypt.DefaultCost when cost is out of range.
func NewBcrypt(cost int, pepper string) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	return &Bcrypt{cost: cost, pepper: pepper}
}

func (b *Bcrypt) Hash(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain+b.pepper), b.cost)
}

func (b *Bcrypt) Verify(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain+b.pepper)) == nil
}
