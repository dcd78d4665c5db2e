package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	d "github.com/mtalha0777/arfurniture/domain"
)

// checkoutKey identifies one purchase of one cart's contents. The same user checking out
// the same unchanged cart always gets the same key, so the gateway never sees two
// different charges for it. Clearing the cart deletes it, and the next cart has a new id.
func checkoutKey(userID string, snapshot *d.CartSnapshot) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte{':'})
		h.Write([]byte(s))
	}

	write(userID)
	write(snapshot.CartID)
	for _, l := range snapshot.Lines {
		write(l.ProductID)
		write(strconv.FormatInt(int64(l.UnitPrice), 10))
	}
	return hex.EncodeToString(h.Sum(nil))
}
