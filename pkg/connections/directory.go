package connections

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// Directory persists connections in a BoltDB file.
// Bucket: "connections" -> key: connection ID, value: JSON-encoded Connection

var (
	// ErrNotFound is returned by Find when no connection matches.
	ErrNotFound = errors.New("connection not found")
	// ErrInvalid is returned by Save when a connection fails validation.
	ErrInvalid = errors.New("invalid connection")
)

const bucketName = "connections"

// Directory is a named registry of connection definitions. Reads are
// consistent snapshots; uniqueness of display names is enforced only
// at save time.
type Directory struct {
	db *bbolt.DB
}

// NewDirectory opens (or creates) the directory database at the given path.
func NewDirectory(path string) (*Directory, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Directory{db: db}, nil
}

// List returns all connections, ordered by connection ID.
func (d *Directory) List() ([]Connection, error) {
	var result []Connection
	err := d.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(_, v []byte) error {
			var conn Connection
			if err := json.Unmarshal(v, &conn); err != nil {
				return err
			}
			result = append(result, conn)
			return nil
		})
	})
	return result, err
}

// Find looks up a connection by either its display name or its ID. Names are
// not unique; when names collide the first match in list order wins.
func (d *Directory) Find(nameOrID string) (Connection, error) {
	list, err := d.List()
	if err != nil {
		return Connection{}, err
	}
	for _, conn := range list {
		if nameOrID == conn.ID || nameOrID == conn.Name {
			return conn, nil
		}
	}
	return Connection{}, fmt.Errorf("%w: %s", ErrNotFound, nameOrID)
}

// Save validates the connection and writes it. A missing ID is generated,
// making Save usable for both create and replace. Saving fails if another
// connection already uses the same display name.
func (d *Directory) Save(conn *Connection) error {
	if err := validate(*conn); err != nil {
		return err
	}
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if conn.AuthType == "" {
		conn.AuthType = AuthTypeBasic
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		err := bucket.ForEach(func(k, v []byte) error {
			if string(k) == conn.ID {
				return nil
			}
			var existing Connection
			if err := json.Unmarshal(v, &existing); err != nil {
				return err
			}
			if existing.Name == conn.Name {
				return fmt.Errorf("%w: the connection name must be unique", ErrInvalid)
			}
			return nil
		})
		if err != nil {
			return err
		}
		val, err := json.Marshal(conn)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(conn.ID), val)
	})
}

// Delete removes a connection by ID. Deleting a missing connection is not an error.
func (d *Directory) Delete(id string) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
}

// Close closes the underlying database.
func (d *Directory) Close() error {
	return d.db.Close()
}

func validate(conn Connection) error {
	if strings.TrimSpace(conn.Name) == "" {
		return fmt.Errorf("%w: the connection name cannot be empty", ErrInvalid)
	}
	if !strings.HasPrefix(conn.APIAddress, "http://") && !strings.HasPrefix(conn.APIAddress, "https://") {
		return fmt.Errorf("%w: the REST API address must start with http:// or https://", ErrInvalid)
	}
	if strings.TrimSpace(conn.CredentialRef) == "" {
		return fmt.Errorf("%w: the connection credentials must be selected", ErrInvalid)
	}
	switch conn.AuthType {
	case AuthTypeBasic, AuthTypeAPIKey, "":
	default:
		return fmt.Errorf("%w: unsupported authentication type %q", ErrInvalid, conn.AuthType)
	}
	return nil
}
