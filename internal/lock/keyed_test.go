package lock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyed_AcquireRelease(t *testing.T) {
	k := NewKeyed()

	release := k.Acquire(AccountKey(2), AccountKey(1), AccountKey(2))
	assert.Equal(t, 2, k.Size())
	release()
	assert.Equal(t, 0, k.Size())
}

func TestKeyed_SerializesSameKey(t *testing.T) {
	k := NewKeyed()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := k.Acquire(AccountKey(7))
			defer release()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.Size())
}

func TestKeyed_OppositeOrderDoesNotDeadlock(t *testing.T) {
	k := NewKeyed()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			k.Acquire(AccountKey(1), AccountKey(2))()
		}()
		go func() {
			defer wg.Done()
			k.Acquire(AccountKey(2), AccountKey(1))()
		}()
	}
	wg.Wait()
}

func TestAccountKey_OrdersNumerically(t *testing.T) {
	assert.Less(t, AccountKey(9), AccountKey(10))
}
