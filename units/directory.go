package units

// Customer is a contact in the customer directory.
type Customer struct {
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email"`
}

// Directory resolves customer IDs to contacts.
type Directory struct {
	customers      map[string]Customer
	defaultContact string
}

// NewDirectory returns a directory that falls back to defaultContact for
// unknown customers or customers without an email address.
func NewDirectory(customers map[string]Customer, defaultContact string) *Directory {
	c := make(map[string]Customer, len(customers))
	for id, cust := range customers {
		c[id] = cust
	}
	return &Directory{customers: c, defaultContact: defaultContact}
}

// Lookup returns the customer and whether it was found. An unknown
// customer gets its ID as name and the default contact.
func (d *Directory) Lookup(id string) (Customer, bool) {
	cust, ok := d.customers[id]
	if !ok {
		return Customer{Name: id, Email: d.defaultContact}, false
	}
	if cust.Name == "" {
		cust.Name = id
	}
	if cust.Email == "" {
		cust.Email = d.defaultContact
	}
	return cust, true
}

// Len returns the number of known customers.
func (d *Directory) Len() int {
	return len(d.customers)
}
