package services

import (
	"menusync/internal/backend"
	"menusync/internal/domain"
)

func categoryRecord(env domain.Environment, o backend.Object) domain.Category {
	c := domain.Category{Environment: env, RemoteID: o.ID, Name: o.Name(), Version: o.Version}
	if o.CategoryData != nil {
		c.Description = o.CategoryData.Description
	}
	return c
}

func itemRecord(env domain.Environment, o backend.Object) domain.Item {
	it := domain.Item{Environment: env, RemoteID: o.ID, Name: o.Name(), Version: o.Version}
	if o.ItemData == nil {
		return it
	}
	it.CategoryRemoteID = o.ItemData.CategoryID
	it.Description = o.ItemData.Description
	if len(o.ItemData.ImageIDs) > 0 {
		it.ImageRemoteID = o.ItemData.ImageIDs[0]
	}
	for _, v := range o.ItemData.Variations {
		if v.ItemVariationData == nil {
			continue
		}
		rec := domain.Variation{
			Environment:  env,
			RemoteID:     v.ID,
			ItemRemoteID: o.ID,
			Name:         v.ItemVariationData.Name,
			PricingMode:  v.ItemVariationData.PricingType,
			Version:      v.Version,
		}
		if m := v.ItemVariationData.PriceMoney; m != nil {
			rec.PriceAmount = m.Amount
			rec.CurrencyCode = m.Currency
		}
		it.Variations = append(it.Variations, rec)
	}
	if len(it.Variations) > 0 {
		it.PriceAmount = it.Variations[0].PriceAmount
	}
	return it
}

// entityType maps a remote object type to the local table it is cached in.
func entityType(t backend.ObjectType) domain.EntityType {
	switch t {
	case backend.TypeCategory:
		return domain.EntityCategory
	case backend.TypeImage:
		return domain.EntityImage
	default:
		return domain.EntityItem
	}
}
