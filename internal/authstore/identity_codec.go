package authstore

import "encoding/json"

type identityFile struct {
	JID  string `json:"jid"`
	Name string `json:"name"`
}

func parseIdentity(data []byte) (*Identity, error) {
	var f identityFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &Identity{JID: f.JID, Name: f.Name}, nil
}

func encodeIdentity(id Identity) []byte {
	data, _ := json.Marshal(identityFile{JID: id.JID, Name: id.Name})
	return data
}
