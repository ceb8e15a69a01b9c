package handlers

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/records"
)

const (
	entityTypeAuthorization      = "authorization"
	entityTypeAuthorizationGrant = "authorization-grant"
	fieldResourceIDs             = "resourceIds"
	authorizationIDSeparator     = "-"
)

// AuthorizationEntity is the document of the resource ids one owner holds one permission type on.
// Within a window it tracks the added and removed resource ids as set deltas.
type AuthorizationEntity struct {
	Id             string   `json:"id"`
	OwnerKey       int64    `json:"ownerKey"`
	OwnerType      string   `json:"ownerType"`
	ResourceType   string   `json:"resourceType"`
	PermissionType string   `json:"permissionType"`
	ResourceIDs    []string `json:"resourceIds"`

	added   []string
	removed []string
}

func (e *AuthorizationEntity) ID() string {
	return e.Id
}

// AuthorizationHandler maintains one document per (owner, resource type, permission type),
// holding the set of resource ids. A removal that empties the set deletes the document.
type AuthorizationHandler struct{}

func NewAuthorizationHandler() AuthorizationHandler {
	return AuthorizationHandler{}
}

func (h AuthorizationHandler) HandledValueType() projector.ValueType {
	return records.ValueTypeAuthorization
}

func (h AuthorizationHandler) EntityType() string {
	return entityTypeAuthorization
}

func (h AuthorizationHandler) IndexName() string {
	return IndexAuthorization
}

func (h AuthorizationHandler) HandlesRecord(record projector.TypedRecord[records.AuthorizationValue]) bool {
	return isPermissionIntent(record.Intent)
}

func (h AuthorizationHandler) GenerateIDs(record projector.TypedRecord[records.AuthorizationValue]) []string {
	ids := make([]string, 0, len(record.Value.Permissions))
	for _, permission := range record.Value.Permissions {
		ids = addValue(ids, authorizationID(record.Value, permission.PermissionType))
	}

	return ids
}

func (h AuthorizationHandler) CreateNewEntity(id string) *AuthorizationEntity {
	return &AuthorizationEntity{Id: id}
}

func (h AuthorizationHandler) UpdateEntity(
	record projector.TypedRecord[records.AuthorizationValue],
	entity *AuthorizationEntity,
) error {

	value := record.Value

	// one record may list the same permission type more than once, all of its resource ids apply
	matched := false
	for _, permission := range value.Permissions {
		if authorizationID(value, permission.PermissionType) != entity.Id {
			continue
		}

		matched = true
		entity.PermissionType = permission.PermissionType

		for _, resourceID := range permission.ResourceIDs {
			if record.Intent == records.IntentPermissionAdded {
				entity.added = addValue(entity.added, resourceID)
				entity.removed = removeValue(entity.removed, resourceID)
			} else {
				entity.removed = addValue(entity.removed, resourceID)
				entity.added = removeValue(entity.added, resourceID)
			}
		}
	}

	if !matched {
		return errors.Join(projector.ErrMalformedRecord,
			fmt.Errorf("no permission of record %d matches %q", record.Key, entity.Id))
	}

	entity.OwnerKey = value.OwnerKey
	entity.OwnerType = value.OwnerType
	entity.ResourceType = value.ResourceType

	entity.ResourceIDs = slices.Clone(entity.added)

	return nil
}

// Flush emits the set deltas as scripts, so concurrent windows of other partitions never lose resource ids.
func (h AuthorizationHandler) Flush(entity *AuthorizationEntity, batch *projector.BatchRequest) error {
	if len(entity.added) > 0 {
		doc, err := toDocument(entity)
		if err != nil {
			return err
		}

		batch.UpdateWithUpsert(IndexAuthorization, entity.Id, doc, projector.AddValues(fieldResourceIDs, entity.added...))
	}

	if len(entity.removed) > 0 {
		batch.Update(IndexAuthorization, entity.Id, projector.RemoveValues(fieldResourceIDs, true, entity.removed...))
	}

	return nil
}

// AuthorizationGrantEntity is the document of one (owner, resource type, permission type, resource id) grant.
type AuthorizationGrantEntity struct {
	Id             string `json:"id"`
	OwnerKey       int64  `json:"ownerKey"`
	OwnerType      string `json:"ownerType"`
	ResourceType   string `json:"resourceType"`
	PermissionType string `json:"permissionType"`
	ResourceID     string `json:"resourceId"`

	revoked bool
}

func (e *AuthorizationGrantEntity) ID() string {
	return e.Id
}

// AuthorizationGrantHandler expands a permission change into one document per granted resource id.
type AuthorizationGrantHandler struct{}

func NewAuthorizationGrantHandler() AuthorizationGrantHandler {
	return AuthorizationGrantHandler{}
}

func (h AuthorizationGrantHandler) HandledValueType() projector.ValueType {
	return records.ValueTypeAuthorization
}

func (h AuthorizationGrantHandler) EntityType() string {
	return entityTypeAuthorizationGrant
}

func (h AuthorizationGrantHandler) IndexName() string {
	return IndexAuthorizationGrant
}

func (h AuthorizationGrantHandler) HandlesRecord(record projector.TypedRecord[records.AuthorizationValue]) bool {
	return isPermissionIntent(record.Intent)
}

func (h AuthorizationGrantHandler) GenerateIDs(record projector.TypedRecord[records.AuthorizationValue]) []string {
	ids := make([]string, 0)
	for _, permission := range record.Value.Permissions {
		for _, resourceID := range permission.ResourceIDs {
			ids = append(ids, authorizationGrantID(record.Value, permission.PermissionType, resourceID))
		}
	}

	return ids
}

func (h AuthorizationGrantHandler) CreateNewEntity(id string) *AuthorizationGrantEntity {
	return &AuthorizationGrantEntity{Id: id}
}

func (h AuthorizationGrantHandler) UpdateEntity(
	record projector.TypedRecord[records.AuthorizationValue],
	entity *AuthorizationGrantEntity,
) error {

	value := record.Value

	for _, permission := range value.Permissions {
		for _, resourceID := range permission.ResourceIDs {
			if authorizationGrantID(value, permission.PermissionType, resourceID) != entity.Id {
				continue
			}

			entity.OwnerKey = value.OwnerKey
			entity.OwnerType = value.OwnerType
			entity.ResourceType = value.ResourceType
			entity.PermissionType = permission.PermissionType
			entity.ResourceID = resourceID
			entity.revoked = record.Intent == records.IntentPermissionRemoved

			return nil
		}
	}

	return errors.Join(projector.ErrMalformedRecord, fmt.Errorf("no grant of record %d matches %q", record.Key, entity.Id))
}

func (h AuthorizationGrantHandler) Flush(entity *AuthorizationGrantEntity, batch *projector.BatchRequest) error {
	if entity.revoked {
		batch.Delete(IndexAuthorizationGrant, entity.Id)
		return nil
	}

	doc, err := toDocument(entity)
	if err != nil {
		return err
	}

	batch.Add(IndexAuthorizationGrant, entity.Id, doc)

	return nil
}

func isPermissionIntent(intent projector.Intent) bool {
	return intent == records.IntentPermissionAdded || intent == records.IntentPermissionRemoved
}

func authorizationID(value records.AuthorizationValue, permissionType string) string {
	return strings.Join([]string{formatKey(value.OwnerKey), value.ResourceType, permissionType}, authorizationIDSeparator)
}

func authorizationGrantID(value records.AuthorizationValue, permissionType, resourceID string) string {
	return authorizationID(value, permissionType) + authorizationIDSeparator + resourceID
}

func addValue(values []string, value string) []string {
	if slices.Contains(values, value) {
		return values
	}

	return append(values, value)
}

func removeValue(values []string, value string) []string {
	return slices.DeleteFunc(values, func(v string) bool { return v == value })
}
