// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channels

import (
	"bytes"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	luxsecp256k1 "github.com/luxfi/crypto/secp256k1"

	"github.com/luxfi/zkchannels/crypto/cl"
	"github.com/luxfi/zkchannels/crypto/group"
	"github.com/luxfi/zkchannels/utils/hashing"
	"github.com/luxfi/zkchannels/wallet"
)

const (
	revokedLabel     = "revoked"
	custClosePrefix  = "ZKCHANNELS_CUST_CLOSE"
	merchClosePrefix = "ZKCHANNELS_MERCH_CLOSE"
)

// RevokedMessage is signed with the secret key of a spent wallet.
type RevokedMessage struct {
	Label string
	Wpk   []byte
}

func NewRevokedMessage(wpk []byte) *RevokedMessage {
	return &RevokedMessage{Label: revokedLabel, Wpk: wpk}
}

// Hash returns sha256(label || wpk).
func (m *RevokedMessage) Hash() hashing.Hash256 {
	return hashing.PrefixedHash(m.Label, m.Wpk)
}

// RevokeToken is an ECDSA signature by the old wallet secret key over a
// RevokedMessage. Signature is in the 65 byte [R || S || V] form.
type RevokeToken struct {
	Message   *RevokedMessage
	Signature []byte
}

// CloseC is the customer close message.
type CloseC struct {
	Wallet *wallet.Wallet
	// Token is the merchant signature on Wallet.
	Token cl.Signature
	Wpk   []byte
	// Signature is the wallet key's signature over the close wallet.
	Signature []byte
}

// Hash is the digest the wallet key signs.
func (c *CloseC) Hash() hashing.Hash256 {
	return closeWalletHash(c.Wallet)
}

// CloseM is the merchant's dispute message: it carries the revocation of the
// wallet the customer closed on.
type CloseM struct {
	Wpk         []byte
	RevokeToken *RevokeToken
	// Signature is the merchant's signature over Hash.
	Signature []byte
}

func (m *CloseM) hash(closeHash hashing.Hash256) hashing.Hash256 {
	return hashing.PrefixedHash(merchClosePrefix, closeHash[:], m.Wpk, m.RevokeToken.Signature)
}

func closeWalletHash(w *wallet.Wallet) hashing.Hash256 {
	return hashing.PrefixedHash(custClosePrefix, wallet.SerializeCompact(w.AsFrVec()))
}

// VerifyCustCloseMessage checks a customer close message against the
// channel token: the wallet belongs to the channel, carries the close tag and
// the merchant's close token, and is signed by the key behind its wpk.
func VerifyCustCloseMessage(token *ChannelToken, closeC *CloseC) bool {
	if closeC == nil || closeC.Wallet == nil || !closeC.Wallet.IsClose() || token.Params == nil || !token.IsInit() {
		return false
	}
	cid := token.ComputeChannelID()
	if !closeC.Wallet.ChannelID.Equal(&cid) {
		return false
	}
	wpkScalar := group.HashToScalar(closeC.Wpk)
	if !closeC.Wallet.Wpk.Equal(&wpkScalar) {
		return false
	}
	params := token.Params
	if !params.PK.Verify(params.MPK, closeC.Wallet.Slots(), &closeC.Token) {
		return false
	}
	h := closeC.Hash()
	return verifyECDSA(closeC.Wpk, h[:], closeC.Signature)
}

// VerifyRevokeMessage checks that rt is signed by the key it revokes.
func VerifyRevokeMessage(rt *RevokeToken) bool {
	if rt == nil || rt.Message == nil || rt.Message.Label != revokedLabel {
		return false
	}
	h := rt.Message.Hash()
	return verifyECDSA(rt.Message.Wpk, h[:], rt.Signature)
}

// VerifyMerchCloseMessage checks a merchant dispute message: the revoke
// token matches the closed wallet and the merchant signed both.
func VerifyMerchCloseMessage(token *ChannelToken, closeC *CloseC, closeM *CloseM) bool {
	if closeC == nil || closeM == nil || closeC.Wallet == nil || !VerifyRevokeMessage(closeM.RevokeToken) {
		return false
	}
	if !bytes.Equal(closeM.Wpk, closeC.Wpk) || !bytes.Equal(closeM.RevokeToken.Message.Wpk, closeC.Wpk) {
		return false
	}
	h := closeM.hash(closeC.Hash())
	return verifyECDSA(token.PkM, h[:], closeM.Signature)
}

func signECDSA(sk *secp256k1.PrivateKey, hash []byte) ([]byte, error) {
	key, err := luxsecp256k1.ToPrivateKey(sk.Serialize())
	if err != nil {
		return nil, err
	}
	return key.SignHash(hash)
}

func verifyECDSA(pubKey, hash, sig []byte) bool {
	pk, err := luxsecp256k1.ToPublicKey(pubKey)
	if err != nil {
		return false
	}
	return pk.VerifyHash(hash, sig)
}
