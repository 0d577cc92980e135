package envelope

import "crypto/subtle"

// pkcs7PadLen returns the number of padding bytes PKCS7 appends to n bytes
func pkcs7PadLen(n, blockSize int) int {
	return blockSize - n%blockSize
}

// fillPadding writes len(pad) copies of byte(len(pad)) into pad
func fillPadding(pad []byte) {
	for i := range pad {
		pad[i] = byte(len(pad))
	}
}

// pkcs7Unpad strips PKCS7 padding from data.
// The last block is always scanned in full so the check does not branch on
// the padding contents.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, newPaddingError(n)
	}

	padLen := int(data[n-1])
	good := subtle.ConstantTimeLessOrEq(1, padLen) & subtle.ConstantTimeLessOrEq(padLen, blockSize)
	for i := 0; i < blockSize; i++ {
		inPad := subtle.ConstantTimeLessOrEq(i+1, padLen)
		match := subtle.ConstantTimeByteEq(data[n-1-i], byte(padLen))
		good &= subtle.ConstantTimeSelect(inPad, match, 1)
	}
	if good != 1 {
		return nil, newPaddingError(n)
	}

	return data[:n-padLen], nil
}
