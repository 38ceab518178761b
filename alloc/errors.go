package alloc

import "errors"

var (
	// ErrUninitialized indicates use of an allocator before Init succeeded or after Close.
	ErrUninitialized = errors.New("alloc: allocator is not initialized")

	// ErrInitialized indicates a second Init on a live allocator.
	ErrInitialized = errors.New("alloc: allocator is already initialized")

	// ErrCapacityTooSmall indicates a buddy capacity below MinBuddyBlock.
	ErrCapacityTooSmall = errors.New("alloc: capacity below minimum block size")

	// ErrNotPowerOfTwo indicates a buddy capacity that is not an exact power of two.
	ErrNotPowerOfTwo = errors.New("alloc: capacity must be a power of two")

	// ErrInvalidSize indicates a zero or negative size argument.
	ErrInvalidSize = errors.New("alloc: size must be positive")

	// ErrSizeTooLarge indicates a request or configuration larger than the allocator supports.
	ErrSizeTooLarge = errors.New("alloc: requested size is too large")

	// ErrNoSpace indicates that no free region large enough was found.
	ErrNoSpace = errors.New("alloc: no free region large enough")

	// ErrGrowFail indicates that acquiring backing memory for a new pool block failed.
	ErrGrowFail = errors.New("alloc: grow failed")

	// ErrNilAddr indicates Free or Bytes was called with NilAddr.
	ErrNilAddr = errors.New("alloc: nil address")

	// ErrOutOfRange indicates an address or index outside the allocator's arena.
	ErrOutOfRange = errors.New("alloc: address out of range")

	// ErrNotOwned indicates an address that belongs to none of the pool's blocks.
	ErrNotOwned = errors.New("alloc: address does not belong to this allocator")

	// ErrMisaligned indicates an address that is not the start of a pool slot.
	ErrMisaligned = errors.New("alloc: address is misaligned with the pool")

	// ErrDoubleFree indicates a pool slot that is already free.
	ErrDoubleFree = errors.New("alloc: memory is already free")

	// ErrNotAllocated indicates an address that is not the start of a used buddy block.
	ErrNotAllocated = errors.New("alloc: address is not an allocated block")

	// ErrEmptyStack indicates Free called with no outstanding allocation.
	ErrEmptyStack = errors.New("alloc: free called with no outstanding allocation")

	// ErrNotTop indicates a stack Free for an address other than the most recent allocation.
	ErrNotTop = errors.New("alloc: address is not the most recent allocation")
)
