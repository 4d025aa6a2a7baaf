package authdata

import (
	"encoding/binary"
	"fmt"
)

// Marshal serializes authenticator data. When the attested-credential-data
// flag is set, AAGUID must be exactly 16 bytes and CredentialPublicKey
// must already be a CBOR-encoded COSE key.
func Marshal(t *T) ([]byte, error) {
	if len(t.RPIDHash) != 32 {
		return nil, fmt.Errorf("authdata: rpIdHash must be 32 bytes, got %d", len(t.RPIDHash))
	}

	out := make([]byte, 0, baseSize)
	out = append(out, t.RPIDHash...)
	out = append(out, t.Flags)
	out = binary.BigEndian.AppendUint32(out, t.SignCount)

	if !t.HasAttestedCredentialData() {
		return out, nil
	}

	acd := &t.AttestedCredentialData
	if len(acd.AAGUID) != AAGUIDSize {
		return nil, fmt.Errorf("authdata: aaguid must be %d bytes, got %d", AAGUIDSize, len(acd.AAGUID))
	}
	if len(acd.CredentialID) > 0xffff {
		return nil, fmt.Errorf("authdata: credential id too long: %d bytes", len(acd.CredentialID))
	}
	out = append(out, acd.AAGUID...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(acd.CredentialID)))
	out = append(out, acd.CredentialID...)
	out = append(out, acd.CredentialPublicKey...)
	return out, nil
}
