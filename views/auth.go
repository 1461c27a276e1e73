package views

import "io"

// AuthForms carries one form variant's rendering state: entered values
// preserved across failures, field errors, and the form-level message.
// AcceptPolicy is only meaningful on the register variant.
type AuthForms struct {
	Username     string
	Password     string
	AcceptPolicy bool
	FieldErrors  map[string]string
	FormError    string
}

// Auth is the public login/registration view
type Auth struct {
	AppName  string
	Login    AuthForms
	Register AuthForms
}

func (Auth) Name() string { return "auth" }

func (v Auth) Render(w io.Writer) error {
	p := &printer{w: w}
	p.printf("%s - sign in or create an account\n", v.AppName)
	p.printf("\nLogin (login <username> <password>)\n")
	renderForm(p, v.Login, nil)
	p.printf("\nRegister (register <username> <password> accept)\n")
	renderForm(p, v.Register, []string{"acceptPolicy"})
	p.printf("\nThe privacy policy is at /privacy-policy; registration\n")
	p.printf("requires accepting it.\n")
	return p.err
}

// renderForm writes one variant's fields with inline errors. Entered
// values are echoed back so a failed submit never clears them.
func renderForm(p *printer, form AuthForms, extraFields []string) {
	fields := []string{"username", "password"}
	fields = append(fields, extraFields...)
	for _, field := range fields {
		value := ""
		switch field {
		case "username":
			value = form.Username
		case "password":
			if form.Password != "" {
				value = "********"
			}
		case "acceptPolicy":
			if form.AcceptPolicy {
				value = "accepted"
			}
		}
		p.printf("  %-14s %s\n", field+":", value)
		if msg, ok := form.FieldErrors[field]; ok {
			p.printf("    ! %s\n", msg)
		}
	}
	if form.FormError != "" {
		p.printf("  ! %s\n", form.FormError)
	}
}
