package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CASHIER_TEST_MODE") == "" {
			_ = os.Setenv("CASHIER_TEST_MODE", "1")
		}
	})
}
