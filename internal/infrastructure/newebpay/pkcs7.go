package newebpay

import "bytes"

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(pad)}, pad)...)
}

// pkcs7Unpad returns data untouched when the trailer is not valid padding.
func pkcs7Unpad(data []byte, blockSize int) []byte {
	n := len(data)
	if n == 0 {
		return data
	}
	pad := int(data[n-1])
	if pad == 0 || pad > blockSize || pad > n {
		return data
	}
	for _, b := range data[n-pad:] {
		if int(b) != pad {
			return data
		}
	}
	return data[:n-pad]
}
