package store

// adminsFileShape mirrors storage/admins.json: {"admins": [user_id]}.
type adminsFileShape struct {
	Admins []string `json:"admins"`
}

const adminsFile = "admins.json"

// LoadAdmins returns the persisted admin allow-list (spec §4.2: "consults
// a persisted admin list first").
func (s *Store) LoadAdmins() ([]string, error) {
	var shape adminsFileShape
	if _, err := s.ReadJSON(adminsFile, &shape); err != nil {
		return nil, err
	}
	return shape.Admins, nil
}

// SaveAdmins overwrites the admin allow-list.
func (s *Store) SaveAdmins(admins []string) error {
	return s.WriteJSON(adminsFile, adminsFileShape{Admins: admins})
}
