package cms

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/taberna/internal/domain/auth"
)

const (
	loginPath    = "/api/auth/local"
	registerPath = "/api/auth/local/register"
)

var _ auth.Provider = (*Client)(nil)

// Login authenticates with the users-permissions plugin.
func (c *Client) Login(ctx context.Context, identifier, password string) (*auth.Session, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("identifier")
	e.Str(identifier)
	e.FieldStart("password")
	e.Str(password)
	e.ObjEnd()

	return c.authenticate(ctx, loginPath, e.Bytes())
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, username, email, password string) (*auth.Session, error) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("username")
	e.Str(username)
	e.FieldStart("email")
	e.Str(email)
	e.FieldStart("password")
	e.Str(password)
	e.ObjEnd()

	return c.authenticate(ctx, registerPath, e.Bytes())
}

// UpdatePhone stores the phone number on the user record, authorized as the
// user.
func (c *Client) UpdatePhone(ctx context.Context, token string, userID int, phone string) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("phone")
	e.Str(phone)
	e.ObjEnd()

	path := "/api/users/" + strconv.Itoa(userID)
	if _, err := c.doAs(ctx, http.MethodPut, path, e.Bytes(), token); err != nil {
		return providerError(errors.Wrap(err, "update phone"))
	}
	return nil
}

func (c *Client) authenticate(ctx context.Context, path string, body []byte) (*auth.Session, error) {
	data, err := c.doAs(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return nil, providerError(err)
	}

	s, err := decodeSession(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	if s.Token == "" {
		return nil, errors.New("response has no jwt")
	}
	return s, nil
}

// providerError exposes CMS rejections as auth.ProviderError.
func providerError(err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		return &auth.ProviderError{Status: se.Status, Message: se.Message}
	}
	return err
}

func decodeSession(data []byte) (*auth.Session, error) {
	var s auth.Session
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "jwt":
			v, err := readString(d)
			s.Token = v
			return err
		case "user":
			return decodeUser(d, &s.User)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeUser(d *jx.Decoder, u *auth.User) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			u.ID, _, err = readInt(d)
		case "username":
			u.Username, err = readString(d)
		case "email":
			u.Email, err = readString(d)
		case "phone":
			u.Phone, err = readString(d)
		default:
			err = d.Skip()
		}
		return err
	})
}
