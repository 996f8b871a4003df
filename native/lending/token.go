package lending

import (
	"github.com/holiman/uint256"

	"lendpool/crypto"
)

// TokenClient is the host-side port for moving tokens and reading token
// metadata. The engine owns no token balances itself; it instructs the host
// to move funds between user accounts and the pool account and trusts the
// host to abort the surrounding operation if a transfer fails.
type TokenClient interface {
	// Transfer moves tokens out of the pool account.
	Transfer(token, to crypto.Address, amount *uint256.Int) error
	// TransferFrom pulls tokens from a user into the pool account.
	TransferFrom(token, from, to crypto.Address, amount *uint256.Int) error
	// BalanceOf reports the token balance held by an account.
	BalanceOf(token, account crypto.Address) (*uint256.Int, error)
	// Decimals reports the token's native decimal count.
	Decimals(token crypto.Address) (uint8, error)
}

// FlashLoanReceiver is implemented by flash-loan borrowers. The engine
// transfers the principal to Address(), invokes the callback, and then
// verifies repayment purely by balance inspection.
type FlashLoanReceiver interface {
	Address() crypto.Address
	// FlashLoanCallback must leave the pool account holding at least its
	// pre-loan balance plus the fee, and return true, for the loan to
	// succeed.
	FlashLoanCallback(sender, token crypto.Address, amount, fee *uint256.Int) (bool, error)
}
