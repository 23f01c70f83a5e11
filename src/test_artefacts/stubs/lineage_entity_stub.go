package stubs

import (
	"time"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"

	"github.com/brianvoe/gofakeit/v6"
)

type LineageEntityStub struct {
	entity entities.LineageEntity
}

func NewLineageEntityStub() LineageEntityStub {
	createdBy := gofakeit.Username()
	createTime := gofakeit.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()).UTC()
	name := gofakeit.Word()

	entity := entities.LineageEntity{
		GUID:        gofakeit.UUID(),
		TypeDefName: domain.LabelRelationalColumn,
		Version:     1,
		CreatedBy:   &createdBy,
		CreateTime:  &createTime,
		Properties: map[string]string{
			"name":          name,
			"displayName":   name,
			"qualifiedName": gofakeit.DomainName() + "::" + name,
		},
	}

	return LineageEntityStub{entity: entity}
}

func (s LineageEntityStub) WithGUID(guid string) LineageEntityStub {
	s.entity.GUID = guid
	return s
}

func (s LineageEntityStub) WithType(typeDefName string) LineageEntityStub {
	s.entity.TypeDefName = typeDefName
	return s
}

func (s LineageEntityStub) WithVersion(version int64) LineageEntityStub {
	s.entity.Version = version
	return s
}

func (s LineageEntityStub) WithUpdatedBy(updatedBy *string) LineageEntityStub {
	s.entity.UpdatedBy = updatedBy
	return s
}

func (s LineageEntityStub) WithUpdateTime(updateTime *time.Time) LineageEntityStub {
	s.entity.UpdateTime = updateTime
	return s
}

func (s LineageEntityStub) WithDisplayName(displayName string) LineageEntityStub {
	return s.WithProperty("displayName", displayName)
}

// WithProperty copia o mapa para que stubs derivados do mesmo valor não compartilhem propriedades.
func (s LineageEntityStub) WithProperty(name string, value string) LineageEntityStub {
	properties := make(map[string]string, len(s.entity.Properties)+1)
	for k, v := range s.entity.Properties {
		properties[k] = v
	}
	properties[name] = value
	s.entity.Properties = properties
	return s
}

func (s LineageEntityStub) Get() entities.LineageEntity {
	return s.entity
}
