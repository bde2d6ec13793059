/*
Package file implements the Signer interface with an Ed25519 key kept in a
JSON file on the local filesystem.

	s, err := file.LoadOrGenSigner("/path/to/config/signer.json")
	if err != nil {
		panic(err)
	}

	signature, err := s.Sign([]byte("Message to sign"))
	if err != nil {
		panic(err)
	}

The file is created with mode 0600 and is not encrypted.
*/
package file
